package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"caqm-backend/config"
	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/domain/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Recipient is the contact data a sender needs to reach a patient.
type Recipient struct {
	UserID uuid.UUID
	Name   string
	Email  string
	Phone  string
}

// NotificationSender delivers a notification over one outbound channel.
type NotificationSender interface {
	Channel() string
	// Accepts reports whether the recipient can be reached on this channel.
	Accepts(recipient Recipient) bool
	Send(ctx context.Context, recipient Recipient, subject, body string) error
}

// NotificationDispatcher pushes stored notifications to patients and records the outcome.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification *entity.Notification, recipient Recipient) entity.DeliveryResult
	// DispatchAsync delivers a copy of the notification in the background.
	DispatchAsync(notification entity.Notification, recipient Recipient)
	// Wait blocks until background deliveries finish.
	Wait()
}

type notificationDispatcher struct {
	db               *gorm.DB
	log              *logrus.Logger
	notificationRepo repository.NotificationRepository
	senders          []NotificationSender
	cfg              config.NotificationConfig
	now              func() time.Time
	inflight         sync.WaitGroup
}

func NewNotificationDispatcher(
	db *gorm.DB,
	log *logrus.Logger,
	notificationRepo repository.NotificationRepository,
	cfg config.NotificationConfig,
	senders ...NotificationSender,
) NotificationDispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval < 0 {
		cfg.RetryInterval = 0
	}
	return &notificationDispatcher{
		db:               db,
		log:              log,
		notificationRepo: notificationRepo,
		senders:          senders,
		cfg:              cfg,
		now:              time.Now,
	}
}

// Dispatch tries every channel that accepts the recipient, retrying failed
// channels up to MaxAttempts times. The result is always persisted, so a
// delivery that gave up is visible as failed rather than lost.
func (d *notificationDispatcher) Dispatch(ctx context.Context, notification *entity.Notification, recipient Recipient) entity.DeliveryResult {
	result := d.deliver(ctx, notification, recipient)

	if err := d.notificationRepo.UpdateDelivery(d.db, notification.ID, result); err != nil {
		d.log.Errorf("Failed to record delivery of notification %s: %+v", notification.ID, err)
	}

	notification.DeliveryStatus = result.Status
	notification.DeliveryAttempts = result.Attempts
	notification.LastDeliveryError = result.LastError
	notification.DeliveredAt = result.DeliveredAt
	return result
}

func (d *notificationDispatcher) DispatchAsync(notification entity.Notification, recipient Recipient) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.Dispatch(context.Background(), &notification, recipient)
	}()
}

func (d *notificationDispatcher) Wait() {
	d.inflight.Wait()
}

func (d *notificationDispatcher) deliver(ctx context.Context, notification *entity.Notification, recipient Recipient) entity.DeliveryResult {
	pending := make([]NotificationSender, 0, len(d.senders))
	for _, sender := range d.senders {
		if sender.Accepts(recipient) {
			pending = append(pending, sender)
		}
	}
	if len(pending) == 0 {
		return entity.DeliveryResult{Status: entity.DeliveryStatusSkipped}
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	body := deliveryBody(notification)
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		var failed []NotificationSender
		var errs []error
		for _, sender := range pending {
			if err := sender.Send(ctx, recipient, notification.Title, body); err != nil {
				d.log.Warnf("Attempt %d: %s delivery of notification %s failed: %+v", attempts, sender.Channel(), notification.ID, err)
				failed = append(failed, sender)
				errs = append(errs, fmt.Errorf("%s: %w", sender.Channel(), err))
			}
		}
		pending = failed
		if len(errs) > 0 {
			return struct{}{}, errors.Join(errs...)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(d.cfg.RetryInterval)),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
	)

	if err != nil {
		d.log.Errorf("Giving up on notification %s after %d attempt(s): %+v", notification.ID, attempts, err)
		return entity.DeliveryResult{
			Status:    entity.DeliveryStatusFailed,
			Attempts:  attempts,
			LastError: strings.ReplaceAll(err.Error(), "\n", "; "),
		}
	}

	deliveredAt := d.now()
	return entity.DeliveryResult{
		Status:      entity.DeliveryStatusSent,
		Attempts:    attempts,
		DeliveredAt: &deliveredAt,
	}
}

// deliveryBody appends the suggested slots to the message text.
func deliveryBody(notification *entity.Notification) string {
	if len(notification.Recommendations) == 0 {
		return notification.Message
	}
	var b strings.Builder
	b.WriteString(notification.Message)
	b.WriteString("\n\nAlternative appointments:")
	for _, r := range notification.Recommendations {
		fmt.Fprintf(&b, "\n- %s (%s), %s %s-%s", r.DoctorName, r.Specialization, r.Date, r.StartTime, r.EndTime)
	}
	return b.String()
}
