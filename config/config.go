package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App            AppConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Recommendation RecommendationConfig
	Notification   NotificationConfig
	SMTP           SMTPConfig
	Twilio         TwilioConfig
	Kafka          KafkaConfig
}

type AppConfig struct {
	Port     string
	Env      string
	Timezone string
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	Timezone string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// RecommendationConfig tunes the alternative-slot search run on cancellation.
type RecommendationConfig struct {
	WindowDays             int
	MaxCandidates          int
	FillWithSpecialization bool
}

type NotificationConfig struct {
	MaxAttempts   int
	RetryInterval time.Duration
	Timeout       time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether e-mail delivery is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Enabled reports whether SMS delivery is configured.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_TIMEZONE", "UTC")
	viper.SetDefault("APP_LOG_LEVEL", "info")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("RECOMMEND_WINDOW_DAYS", 14)
	viper.SetDefault("RECOMMEND_MAX_CANDIDATES", 5)
	viper.SetDefault("RECOMMEND_FILL_WITH_SPECIALIZATION", false)
	viper.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 3)
	viper.SetDefault("NOTIFICATION_RETRY_INTERVAL", "2s")
	viper.SetDefault("NOTIFICATION_TIMEOUT", "30s")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_FROM", "noreply@caqm.com")
	viper.SetDefault("KAFKA_TOPIC", "appointment.cancelled")
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom reads the given env file and overlays the process
// environment. A missing file is not an error.
func LoadConfigFrom(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	timezone := viper.GetString("APP_TIMEZONE")

	config := &Config{
		App: AppConfig{
			Port:     viper.GetString("APP_PORT"),
			Env:      viper.GetString("APP_ENV"),
			Timezone: timezone,
			LogLevel: viper.GetString("APP_LOG_LEVEL"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			Timezone: timezone,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: accessExpiry,
		},
		Recommendation: RecommendationConfig{
			WindowDays:             viper.GetInt("RECOMMEND_WINDOW_DAYS"),
			MaxCandidates:          viper.GetInt("RECOMMEND_MAX_CANDIDATES"),
			FillWithSpecialization: viper.GetBool("RECOMMEND_FILL_WITH_SPECIALIZATION"),
		},
		Notification: NotificationConfig{
			MaxAttempts:   viper.GetInt("NOTIFICATION_MAX_ATTEMPTS"),
			RetryInterval: viper.GetDuration("NOTIFICATION_RETRY_INTERVAL"),
			Timeout:       viper.GetDuration("NOTIFICATION_TIMEOUT"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Twilio: TwilioConfig{
			AccountSID: viper.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  viper.GetString("TWILIO_AUTH_TOKEN"),
			FromNumber: viper.GetString("TWILIO_FROM_NUMBER"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetString("KAFKA_BROKERS"),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
	}

	return config, nil
}

// Location resolves the clinic timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
