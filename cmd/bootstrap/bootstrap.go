package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caqm-backend/config"
	deliveryHttp "caqm-backend/internal/delivery/http"
	"caqm-backend/internal/delivery/http/handler"
	"caqm-backend/internal/delivery/http/middleware"
	"caqm-backend/internal/infrastructure/cache"
	"caqm-backend/internal/infrastructure/database"
	"caqm-backend/internal/infrastructure/messaging"
	"caqm-backend/internal/infrastructure/notifier"
	"caqm-backend/internal/repository"
	"caqm-backend/internal/service"
	"caqm-backend/internal/usecase"
	"caqm-backend/pkg/jwt"
	"caqm-backend/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	RedisClient  *redis.Client
	Server       *http.Server
	QuotaService service.ScheduleQuotaService
	Dispatcher   service.NotificationDispatcher
	Publisher    service.EventPublisher
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	setupLogger(cfg.App.LogLevel)
	logrus.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	logrus.Info("Database connected successfully")

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	logrus.Info("Redis connected successfully")

	// Initialize all layers
	app.initializeServer(cfg, db, redisClient)

	// Rebuild quota counters before serving traffic
	syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.QuotaService.SyncOnStartup(syncCtx); err != nil {
		// Booking resyncs a schedule lazily when its keys are missing
		logrus.Warnf("Quota cache sync incomplete: %v", err)
	}

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// initializeServer wires every layer and creates the HTTP server
func (app *App) initializeServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) {
	loc := cfg.App.Location()

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize logger
	log := logrus.StandardLogger()

	// Initialize repositories
	appointmentRepo := repository.NewAppointmentRepository()
	doctorProfileRepo := repository.NewDoctorProfileRepository()
	doctorScheduleRepo := repository.NewDoctorScheduleRepository()
	notificationRepo := repository.NewNotificationRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// Initialize services
	auditService := service.NewAuditService(log, auditLogRepo)
	quotaService := service.NewScheduleQuotaService(db, redisClient, log, appointmentRepo, loc)
	recommender := service.NewRecommendationService(log, doctorScheduleRepo, appointmentRepo, doctorProfileRepo, cfg.Recommendation, loc)
	dispatcher := service.NewNotificationDispatcher(db, log, notificationRepo, cfg.Notification, senders(cfg, log)...)
	publisher := eventPublisher(cfg, log)

	app.QuotaService = quotaService
	app.Dispatcher = dispatcher
	app.Publisher = publisher

	// Initialize usecases
	cancellationUsecase := usecase.NewCancellationUsecase(db, log, appointmentRepo, doctorProfileRepo, notificationRepo,
		recommender, auditService, quotaService, dispatcher, publisher, cfg.Recommendation, loc)
	patientAppointmentUsecase := usecase.NewPatientAppointmentUsecase(db, log, appointmentRepo, doctorScheduleRepo, doctorProfileRepo,
		recommender, auditService, quotaService, loc)
	notificationUsecase := usecase.NewNotificationUsecase(db, log, notificationRepo, auditService)
	doctorScheduleUsecase := usecase.NewDoctorScheduleUsecase(db, log, doctorScheduleRepo, doctorProfileRepo, appointmentRepo, auditService, quotaService)
	auditLogUsecase := usecase.NewAuditLogUsecase(db, log, auditLogRepo)
	doctorProfileUsecase := usecase.NewDoctorProfileUsecase(db, log, doctorProfileRepo)
	adminAppointmentUsecase := usecase.NewAdminAppointmentUsecase(db, log, appointmentRepo, auditService, loc)

	// Initialize handlers
	doctorHandler := handler.NewDoctorHandler(doctorProfileUsecase)
	cancellationHandler := handler.NewCancellationHandler(cancellationUsecase, customValidator)
	adminAppointmentHandler := handler.NewAdminAppointmentHandler(adminAppointmentUsecase, customValidator)
	patientAppointmentHandler := handler.NewPatientAppointmentHandler(patientAppointmentUsecase, customValidator)
	notificationHandler := handler.NewNotificationHandler(notificationUsecase)
	doctorScheduleHandler := handler.NewDoctorScheduleHandler(doctorScheduleUsecase, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, redisClient, log)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(doctorHandler, cancellationHandler, adminAppointmentHandler, patientAppointmentHandler, notificationHandler,
		doctorScheduleHandler, auditLogHandler, authMiddleware, corsMiddleware)
	httpRouter := router.Setup()

	// Create server
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// senders returns the outbound channels that are configured
func senders(cfg *config.Config, log *logrus.Logger) []service.NotificationSender {
	var out []service.NotificationSender
	if cfg.SMTP.Enabled() {
		out = append(out, notifier.NewEmailSender(cfg.SMTP))
		log.Infof("E-mail delivery enabled via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
	if cfg.Twilio.Enabled() {
		out = append(out, notifier.NewSMSSender(cfg.Twilio))
		log.Info("SMS delivery enabled via Twilio")
	}
	if len(out) == 0 {
		log.Warn("No delivery channel configured, notifications stay in-app only")
	}
	return out
}

func eventPublisher(cfg *config.Config, log *logrus.Logger) service.EventPublisher {
	if pub := messaging.NewKafkaPublisher(cfg.Kafka, log); pub != nil {
		return pub
	}
	return service.NewNoopEventPublisher()
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Let in-flight deliveries record their outcome
	if app.Dispatcher != nil {
		logrus.Info("Waiting for pending notification deliveries...")
		app.Dispatcher.Wait()
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, kafka, etc.)
func (app *App) Close() {
	if app.QuotaService != nil {
		app.QuotaService.Stop()
	}

	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			logrus.Warnf("Failed to close event publisher: %v", err)
		}
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
