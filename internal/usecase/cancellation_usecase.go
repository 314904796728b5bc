package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caqm-backend/config"
	"caqm-backend/internal/availability"
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
	ErrAppointmentNotFound         = errors.New("appointment not found")
	ErrAppointmentAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrAppointmentFinished         = errors.New("cannot cancel a completed or no-show appointment")
	ErrAppointmentInPast           = errors.New("cannot cancel past appointments")
	ErrNoActiveAppointments        = errors.New("no active appointments found to cancel")
	ErrInvalidDate                 = errors.New("invalid date format, use YYYY-MM-DD")
)

const (
	messageDateLayout  = "January 02, 2006"
	messageClockLayout = "03:04 PM"
	sideEffectTimeout  = 5 * time.Second
)

// CancellationUsecase cancels appointments on behalf of the clinic and
// tells every affected patient, with alternative slots where possible.
type CancellationUsecase interface {
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.CancellationResponse, error)
	CancelDoctorAppointments(ctx context.Context, doctorID uuid.UUID, req *dto.CancelDoctorAppointmentsRequest) (*dto.CancellationResponse, error)
	PreviewRecommendations(ctx context.Context, appointmentID uuid.UUID) (*dto.RecommendationListResponse, error)
}

type cancellationUsecase struct {
	db               *gorm.DB
	log              *logrus.Logger
	appointmentRepo  repository.AppointmentRepository
	doctorRepo       repository.DoctorProfileRepository
	notificationRepo repository.NotificationRepository
	recommender      service.RecommendationService
	auditService     service.AuditService
	quotaService     service.ScheduleQuotaService
	dispatcher       service.NotificationDispatcher
	publisher        service.EventPublisher
	cfg              config.RecommendationConfig
	loc              *time.Location
	now              func() time.Time
}

func NewCancellationUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorProfileRepository,
	notificationRepo repository.NotificationRepository,
	recommender service.RecommendationService,
	auditService service.AuditService,
	quotaService service.ScheduleQuotaService,
	dispatcher service.NotificationDispatcher,
	publisher service.EventPublisher,
	cfg config.RecommendationConfig,
	loc *time.Location,
) CancellationUsecase {
	return &cancellationUsecase{
		db:               db,
		log:              log,
		appointmentRepo:  appointmentRepo,
		doctorRepo:       doctorRepo,
		notificationRepo: notificationRepo,
		recommender:      recommender,
		auditService:     auditService,
		quotaService:     quotaService,
		dispatcher:       dispatcher,
		publisher:        publisher,
		cfg:              cfg,
		loc:              loc,
		now:              time.Now,
	}
}

// cancelled pairs an appointment with the notification written for its patient
type cancelled struct {
	appointment  entity.Appointment
	notification *entity.Notification
}

// CancelAppointment cancels one appointment, or every active appointment of
// its doctor when ApplyToAll is set.
//
// Flow (single):
// 1. Lock the appointment row and check it can still be cancelled
// 2. Conditionally flip the status (0 rows means a concurrent cancel won)
// 3. Compute alternatives, excluding the cancelled slot
// 4. Store the notification and audit entry in the same transaction
// 5. After commit: release quota, publish event, deliver notification
func (u *cancellationUsecase) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.CancellationResponse, error) {
	adminID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	if req.ApplyToAll {
		appointment, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointmentID)
		if err != nil {
			u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
			return nil, err
		}
		if appointment == nil {
			return nil, ErrAppointmentNotFound
		}
		return u.CancelDoctorAppointments(ctx, appointment.DoctorID, &dto.CancelDoctorAppointmentsRequest{
			Reason: req.Reason,
			Date:   req.Date,
		})
	}

	now := u.now()
	today := u.today(now)

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	appointment, err := u.appointmentRepo.FindByIDForUpdate(tx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to lock appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if err := checkCancellable(appointment, today); err != nil {
		return nil, err
	}

	affected, err := u.appointmentRepo.Cancel(tx, appointment.ID, req.Reason, now)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointment.ID, err)
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAppointmentAlreadyCancelled
	}
	previousStatus := appointment.Status
	markCancelled(appointment, req.Reason, now)

	recommendations, err := u.recommender.Recommend(ctx, tx, service.RecommendationRequest{Appointment: appointment})
	if err != nil {
		u.log.Warnf("Failed to compute recommendations for appointment %s: %+v", appointment.ID, err)
		return nil, err
	}

	doctorName := appointment.Doctor.DisplayName()
	notification := &entity.Notification{
		UserID:          appointment.PatientID,
		AppointmentID:   &appointment.ID,
		Type:            entity.NotificationTypeAppointmentCancelled,
		Title:           "Appointment Cancelled",
		Message:         u.withAlternativesNote(singleCancellationMessage(doctorName, appointment, req.Reason), recommendations),
		Recommendations: recommendations,
		DeliveryStatus:  entity.DeliveryStatusPending,
	}
	if err := u.notificationRepo.Create(tx, notification); err != nil {
		u.log.Warnf("Failed to create notification for appointment %s: %+v", appointment.ID, err)
		return nil, err
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &adminID,
		Action:   entity.AuditActionAppointmentCancel,
		Entity:   "appointment",
		EntityID: appointment.ID.String(),
		OldValue: map[string]interface{}{"status": previousStatus},
		NewValue: map[string]interface{}{"status": appointment.Status},
		Extra: entity.JSON{
			"reason":               req.Reason,
			"notification_id":      notification.ID,
			"recommendation_count": len(recommendations),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit cancellation of appointment %s: %+v", appointment.ID, err)
		return nil, err
	}

	results := []cancelled{{appointment: *appointment, notification: notification}}
	u.afterCommit(adminID, false, results)

	u.log.Infof("Appointment cancelled: id=%s, doctor=%s, alternatives=%d", appointment.ID, appointment.DoctorID, len(recommendations))
	return toCancellationResponse(results), nil
}

// CancelDoctorAppointments cancels every active appointment of a doctor from
// today onwards, or only on req.Date. Each patient gets one notification.
// Every cancelled doctor/date pair is excluded from all alternatives in the batch.
func (u *cancellationUsecase) CancelDoctorAppointments(ctx context.Context, doctorID uuid.UUID, req *dto.CancelDoctorAppointmentsRequest) (*dto.CancellationResponse, error) {
	adminID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	var on *time.Time
	if req.Date != "" {
		date, err := time.Parse(availability.DateLayout, req.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		on = &date
	}

	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	now := u.now()
	today := u.today(now)

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	appointments, err := u.appointmentRepo.FindActiveByDoctor(tx, doctorID, today, on)
	if err != nil {
		u.log.Warnf("Failed to find appointments of doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if len(appointments) == 0 {
		return nil, ErrNoActiveAppointments
	}

	exclusions := service.NewSlotExclusions()
	for _, appointment := range appointments {
		exclusions.ExcludeDay(doctorID, availability.DateOnly(appointment.AppointmentDate))
	}

	doctorName := doctor.DisplayName()
	results := make([]cancelled, 0, len(appointments))
	for i := range appointments {
		appointment := &appointments[i]

		affected, err := u.appointmentRepo.Cancel(tx, appointment.ID, req.Reason, now)
		if err != nil {
			u.log.Warnf("Failed to cancel appointment %s: %+v", appointment.ID, err)
			return nil, err
		}
		if affected == 0 {
			u.log.Debugf("Appointment %s was cancelled concurrently, skipping", appointment.ID)
			continue
		}
		markCancelled(appointment, req.Reason, now)
		appointment.Doctor = *doctor

		recommendations, err := u.recommender.Recommend(ctx, tx, service.RecommendationRequest{
			Appointment: appointment,
			Exclusions:  exclusions,
		})
		if err != nil {
			u.log.Warnf("Failed to compute recommendations for appointment %s: %+v", appointment.ID, err)
			return nil, err
		}

		notification := &entity.Notification{
			UserID:          appointment.PatientID,
			AppointmentID:   &appointment.ID,
			Type:            entity.NotificationTypeBulkCancellation,
			Title:           fmt.Sprintf("Appointment with %s Cancelled", doctorName),
			Message:         u.withAlternativesNote(bulkCancellationMessage(doctorName, appointment, req.Reason, on != nil), recommendations),
			Recommendations: recommendations,
			DeliveryStatus:  entity.DeliveryStatusPending,
		}
		if err := u.notificationRepo.Create(tx, notification); err != nil {
			u.log.Warnf("Failed to create notification for appointment %s: %+v", appointment.ID, err)
			return nil, err
		}

		results = append(results, cancelled{appointment: *appointment, notification: notification})
	}

	if len(results) == 0 {
		return nil, ErrNoActiveAppointments
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.appointment.ID.String()
	}
	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &adminID,
		Action:   entity.AuditActionAppointmentBulkCancel,
		Entity:   "doctor",
		EntityID: doctorID.String(),
		NewValue: map[string]interface{}{"cancelled_appointments": ids},
		Extra: entity.JSON{
			"reason": req.Reason,
			"date":   req.Date,
			"count":  len(results),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit bulk cancellation for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	u.afterCommit(adminID, true, results)

	u.log.Infof("Bulk cancellation: doctor=%s, date=%q, cancelled=%d", doctorID, req.Date, len(results))
	return toCancellationResponse(results), nil
}

// PreviewRecommendations shows what a cancellation would offer, without changing anything.
func (u *cancellationUsecase) PreviewRecommendations(ctx context.Context, appointmentID uuid.UUID) (*dto.RecommendationListResponse, error) {
	db := u.db.WithContext(ctx)

	appointment, err := u.appointmentRepo.FindByID(db, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}

	recommendations, err := u.recommender.Recommend(ctx, db, service.RecommendationRequest{Appointment: appointment})
	if err != nil {
		u.log.Warnf("Failed to compute recommendations for appointment %s: %+v", appointmentID, err)
		return nil, err
	}

	return &dto.RecommendationListResponse{
		AppointmentID:   appointment.ID,
		Recommendations: converter.RecommendationsToResponses(recommendations),
		Total:           len(recommendations),
	}, nil
}

// afterCommit runs side effects that must not roll back the cancellation.
// Failures are logged; the quota cache and event stream can be rebuilt.
func (u *cancellationUsecase) afterCommit(adminID uuid.UUID, bulk bool, results []cancelled) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	for _, r := range results {
		appointment := r.appointment

		if err := u.quotaService.Release(ctx, appointment.ScheduleID); err != nil {
			u.log.Warnf("Failed to release quota for schedule %d (non-fatal): %+v", appointment.ScheduleID, err)
		}

		event := entity.AppointmentCancelledEvent{
			EventID:             uuid.New(),
			AppointmentID:       appointment.ID,
			PatientID:           appointment.PatientID,
			DoctorID:            appointment.DoctorID,
			ScheduleID:          appointment.ScheduleID,
			AppointmentDate:     appointment.AppointmentDate.Format(availability.DateLayout),
			StartTime:           availability.NormalizeClock(appointment.StartTime),
			Reason:              appointment.CancelReason,
			CancelledBy:         &adminID,
			Bulk:                bulk,
			NotificationID:      r.notification.ID,
			RecommendationCount: len(r.notification.Recommendations),
			OccurredAt:          u.now().UTC(),
		}
		if err := u.publisher.PublishAppointmentCancelled(ctx, event); err != nil {
			u.log.Warnf("Failed to publish cancellation of %s (non-fatal): %+v", appointment.ID, err)
		}

		u.dispatcher.DispatchAsync(*r.notification, recipientOf(&appointment))
	}
}

func (u *cancellationUsecase) today(now time.Time) time.Time {
	return availability.DateOnly(availability.WallClock(now, u.loc))
}

func (u *cancellationUsecase) withAlternativesNote(message string, recommendations entity.RecommendationList) string {
	if len(recommendations) > 0 {
		return message
	}
	return noAlternativesMessage(message, u.windowDays())
}

func (u *cancellationUsecase) windowDays() int {
	if u.cfg.WindowDays <= 0 {
		return 14
	}
	return u.cfg.WindowDays
}

func checkCancellable(appointment *entity.Appointment, today time.Time) error {
	switch {
	case appointment.IsCancelled():
		return ErrAppointmentAlreadyCancelled
	case appointment.IsFinished():
		return ErrAppointmentFinished
	case availability.DateOnly(appointment.AppointmentDate).Before(today):
		return ErrAppointmentInPast
	}
	return nil
}

func markCancelled(appointment *entity.Appointment, reason string, at time.Time) {
	appointment.Status = entity.AppointmentStatusCancelled
	appointment.CancelReason = reason
	appointment.CancelledAt = &at
}

func recipientOf(appointment *entity.Appointment) service.Recipient {
	return service.Recipient{
		UserID: appointment.PatientID,
		Name:   appointment.Patient.User.FullName,
		Email:  appointment.Patient.User.Email,
		Phone:  appointment.Patient.PhoneNumber,
	}
}

// appointmentMoment renders the appointment as "March 02, 2026" and "09:00 AM".
func appointmentMoment(appointment *entity.Appointment) (string, string) {
	date := appointment.AppointmentDate.Format(messageDateLayout)
	start, err := availability.At(appointment.AppointmentDate, appointment.StartTime)
	if err != nil {
		return date, appointment.StartTime
	}
	return date, start.Format(messageClockLayout)
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return " Reason: " + reason
}

func singleCancellationMessage(doctorName string, appointment *entity.Appointment, reason string) string {
	date, clock := appointmentMoment(appointment)
	return fmt.Sprintf("Your appointment with %s on %s at %s has been cancelled by the administrator.%s",
		doctorName, date, clock, reasonSuffix(reason))
}

func bulkCancellationMessage(doctorName string, appointment *entity.Appointment, reason string, dated bool) string {
	if dated {
		return singleCancellationMessage(doctorName, appointment, reason)
	}
	date, clock := appointmentMoment(appointment)
	return fmt.Sprintf("All your appointments with %s have been cancelled by the administrator. Your appointment on %s at %s is affected.%s",
		doctorName, date, clock, reasonSuffix(reason))
}

func noAlternativesMessage(message string, windowDays int) string {
	return fmt.Sprintf("%s No alternative appointments are available in the next %d days. Please contact the clinic to reschedule.", message, windowDays)
}

func toCancellationResponse(results []cancelled) *dto.CancellationResponse {
	items := make([]dto.CancelledAppointmentResponse, len(results))
	for i, r := range results {
		items[i] = dto.CancelledAppointmentResponse{
			AppointmentID:   r.appointment.ID,
			PatientID:       r.appointment.PatientID,
			PatientName:     r.appointment.Patient.User.FullName,
			AppointmentDate: r.appointment.AppointmentDate.Format(availability.DateLayout),
			StartTime:       availability.NormalizeClock(r.appointment.StartTime),
			NotificationID:  r.notification.ID,
			Recommendations: converter.RecommendationsToResponses(r.notification.Recommendations),
			DeliveryStatus:  string(r.notification.DeliveryStatus),
		}
	}
	return &dto.CancellationResponse{Cancelled: items, Total: len(items)}
}
