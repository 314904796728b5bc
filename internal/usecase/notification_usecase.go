package usecase

import (
	"context"
	"errors"
	"time"

	"caqm-backend/internal/converter"
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/delivery/http/middleware"
	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/domain/repository"
	"caqm-backend/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

type NotificationUsecase interface {
	GetMyNotifications(ctx context.Context, unreadOnly bool) (*dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID) (*dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context) (*dto.MarkAllReadResponse, error)
}

type notificationUsecase struct {
	db               *gorm.DB
	log              *logrus.Logger
	notificationRepo repository.NotificationRepository
	auditService     service.AuditService
	now              func() time.Time
}

func NewNotificationUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	notificationRepo repository.NotificationRepository,
	auditService service.AuditService,
) NotificationUsecase {
	return &notificationUsecase{
		db:               db,
		log:              log,
		notificationRepo: notificationRepo,
		auditService:     auditService,
		now:              time.Now,
	}
}

func (u *notificationUsecase) GetMyNotifications(ctx context.Context, unreadOnly bool) (*dto.NotificationListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	db := u.db.WithContext(ctx)
	notifications, err := u.notificationRepo.FindByUserID(db, userID, unreadOnly)
	if err != nil {
		u.log.Warnf("Failed to find notifications for user %s: %+v", userID, err)
		return nil, err
	}

	unread, err := u.notificationRepo.CountUnread(db, userID)
	if err != nil {
		u.log.Warnf("Failed to count unread notifications for user %s: %+v", userID, err)
		return nil, err
	}

	return &dto.NotificationListResponse{
		Notifications: converter.NotificationsToResponses(notifications),
		Total:         len(notifications),
		UnreadCount:   unread,
	}, nil
}

// MarkRead marks one of the caller's notifications as read. Other users'
// notifications are reported as not found.
func (u *notificationUsecase) MarkRead(ctx context.Context, notificationID uuid.UUID) (*dto.NotificationResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	notification, err := u.notificationRepo.FindByID(tx, notificationID)
	if err != nil {
		u.log.Warnf("Failed to find notification %s: %+v", notificationID, err)
		return nil, err
	}
	if notification == nil || notification.UserID != userID {
		return nil, ErrNotificationNotFound
	}

	if notification.IsRead {
		return converter.NotificationToResponse(notification), nil
	}

	at := u.now()
	if _, err := u.notificationRepo.MarkRead(tx, notificationID, userID, at); err != nil {
		u.log.Warnf("Failed to mark notification %s as read: %+v", notificationID, err)
		return nil, err
	}
	notification.IsRead = true
	notification.ReadAt = &at

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &userID,
		Action:   entity.AuditActionNotificationRead,
		Entity:   "notification",
		EntityID: notificationID.String(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit read of notification %s: %+v", notificationID, err)
		return nil, err
	}

	return converter.NotificationToResponse(notification), nil
}

func (u *notificationUsecase) MarkAllRead(ctx context.Context) (*dto.MarkAllReadResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	updated, err := u.notificationRepo.MarkAllRead(u.db.WithContext(ctx), userID, u.now())
	if err != nil {
		u.log.Warnf("Failed to mark notifications of user %s as read: %+v", userID, err)
		return nil, err
	}

	return &dto.MarkAllReadResponse{Updated: updated}, nil
}
