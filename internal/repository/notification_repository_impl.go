package repository

import (
	"errors"
	"time"

	"caqm-backend/internal/domain/entity"
	domainRepo "caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type notificationRepository struct{}

func NewNotificationRepository() domainRepo.NotificationRepository {
	return &notificationRepository{}
}

func (r *notificationRepository) Create(db *gorm.DB, notification *entity.Notification) error {
	if notification.Recommendations == nil {
		notification.Recommendations = entity.RecommendationList{}
	}
	return db.Omit("User").Create(notification).Error
}

func (r *notificationRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Notification, error) {
	var notification entity.Notification
	err := db.Where("id = ?", id).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) FindByUserID(db *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]entity.Notification, error) {
	var notifications []entity.Notification
	query := db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	err := query.Order("created_at DESC").Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(db *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags one notification as read. The user_id condition makes it a
// no-op (0 rows) for notifications owned by someone else.
func (r *notificationRepository) MarkRead(db *gorm.DB, id uuid.UUID, userID uuid.UUID, at time.Time) (int64, error) {
	result := db.Model(&entity.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": gorm.Expr("COALESCE(read_at, ?)", at)})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) MarkAllRead(db *gorm.DB, userID uuid.UUID, at time.Time) (int64, error) {
	result := db.Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) UpdateDelivery(db *gorm.DB, id uuid.UUID, result entity.DeliveryResult) error {
	return db.Model(&entity.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delivery_status":     result.Status,
			"delivery_attempts":   result.Attempts,
			"last_delivery_error": result.LastError,
			"delivered_at":        result.DeliveredAt,
		}).Error
}
