package repository

import (
	"time"

	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(db *gorm.DB, notification *entity.Notification) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Notification, error)
	FindByUserID(db *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]entity.Notification, error)
	CountUnread(db *gorm.DB, userID uuid.UUID) (int64, error)
	MarkRead(db *gorm.DB, id uuid.UUID, userID uuid.UUID, at time.Time) (int64, error)
	MarkAllRead(db *gorm.DB, userID uuid.UUID, at time.Time) (int64, error)
	UpdateDelivery(db *gorm.DB, id uuid.UUID, result entity.DeliveryResult) error
}
