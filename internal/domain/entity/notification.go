package entity

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies in-app notifications
type NotificationType string

const (
	NotificationTypeAppointmentCancelled NotificationType = "appointment_cancelled"
	NotificationTypeBulkCancellation     NotificationType = "bulk_cancellation"
)

// DeliveryStatus tracks outbound delivery (e-mail / SMS) of a notification
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
)

// Notification is a patient-facing message, optionally carrying
// alternative appointment suggestions
type Notification struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          uuid.UUID          `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	AppointmentID   *uuid.UUID         `gorm:"type:uuid;index" json:"appointment_id,omitempty"`
	Type            NotificationType   `gorm:"type:varchar(50);not null" json:"type"`
	Title           string             `gorm:"type:varchar(255);not null" json:"title"`
	Message         string             `gorm:"type:text;not null" json:"message"`
	Recommendations RecommendationList `gorm:"type:jsonb;not null;default:'[]'" json:"recommendations"`
	IsRead          bool               `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	ReadAt          *time.Time         `json:"read_at,omitempty"`

	DeliveryStatus    DeliveryStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"delivery_status"`
	DeliveryAttempts  int            `gorm:"not null;default:0" json:"delivery_attempts"`
	LastDeliveryError string         `gorm:"type:text" json:"last_delivery_error,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}

// DeliveryResult is what the dispatcher records after trying all channels
type DeliveryResult struct {
	Status      DeliveryStatus
	Attempts    int
	LastError   string
	DeliveredAt *time.Time
}
