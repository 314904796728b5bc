package usecase

import (
	"context"
	"errors"
	"time"

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
	ErrUserNotInContext      = errors.New("user not found in context")
	ErrAppointmentNotOwned   = errors.New("appointment does not belong to you")
	ErrAlreadyBooked         = errors.New("you already have an appointment in this specialization on that date")
	ErrSchedulePast          = errors.New("cannot book a past schedule")
	ErrSlotNotOnGrid         = errors.New("start time does not match a slot of this schedule")
	ErrSlotInPast            = errors.New("cannot book a slot that has already started")
	ErrSlotTaken             = errors.New("this slot is already booked")
	ErrAppointmentNotPending = errors.New("only scheduled appointments can be cancelled")
)

type PatientAppointmentUsecase interface {
	GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error)
	BookAppointment(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	CancelMyAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) error
	GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*dto.AvailableSlotsResponse, error)
}

type patientAppointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	scheduleRepo    repository.DoctorScheduleRepository
	doctorRepo      repository.DoctorProfileRepository
	recommender     service.RecommendationService
	auditService    service.AuditService
	quotaService    service.ScheduleQuotaService
	loc             *time.Location
	now             func() time.Time
}

func NewPatientAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	scheduleRepo repository.DoctorScheduleRepository,
	doctorRepo repository.DoctorProfileRepository,
	recommender service.RecommendationService,
	auditService service.AuditService,
	quotaService service.ScheduleQuotaService,
	loc *time.Location,
) PatientAppointmentUsecase {
	return &patientAppointmentUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
		scheduleRepo:    scheduleRepo,
		doctorRepo:      doctorRepo,
		recommender:     recommender,
		auditService:    auditService,
		quotaService:    quotaService,
		loc:             loc,
		now:             time.Now,
	}
}

// GetMyAppointments returns all appointments of the logged-in patient
func (u *patientAppointmentUsecase) GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	appointments, err := u.appointmentRepo.FindByPatientID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find appointments for patient %s: %+v", userID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// BookAppointment books one slot of a schedule.
//
// Flow:
// 1. Validate the schedule and the requested slot (on grid, not started)
// 2. Redis Reserve (atomic quota check + queue number)
// 3. In a transaction: lock the schedule, reject overlaps and same-day
//    duplicates in the specialization, insert, audit
// 4. If anything after step 2 fails -> compensate: Release in Redis
func (u *patientAppointmentUsecase) BookAppointment(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}

	// Step 1: Validate schedule and slot
	schedule, err := u.scheduleRepo.FindByID(u.db.WithContext(ctx), req.ScheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule %d: %+v", req.ScheduleID, err)
		return nil, err
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}

	now := availability.WallClock(u.now(), u.loc)
	date := availability.DateOnly(schedule.ScheduleDate)
	if date.Before(availability.DateOnly(now)) {
		return nil, ErrSchedulePast
	}

	slot, err := bookableSlot(schedule, req.StartTime, now)
	if err != nil {
		return nil, err
	}

	// Step 2: Redis atomic slot reservation
	queueNumber, err := u.reserve(ctx, schedule)
	if err != nil {
		return nil, err
	}

	appointment, err := u.insert(ctx, userID, schedule, slot, queueNumber, req.Notes)
	if err != nil {
		// Step 4: COMPENSATE
		syncCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if restoreErr := u.quotaService.Release(syncCtx, schedule.ID); restoreErr != nil {
			u.log.Errorf("CRITICAL: Failed to release Redis quota after failed booking on schedule %d: %+v", schedule.ID, restoreErr)
		}
		return nil, err
	}

	full, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointment.ID)
	if err != nil || full == nil {
		u.log.Warnf("Failed to reload appointment %s: %+v", appointment.ID, err)
		return converter.AppointmentToResponse(appointment), nil
	}

	u.log.Infof("Appointment booked: id=%s, schedule=%d, start=%s, queue=%d", appointment.ID, schedule.ID, appointment.StartTime, queueNumber)
	return converter.AppointmentToResponse(full), nil
}

func (u *patientAppointmentUsecase) reserve(ctx context.Context, schedule *entity.DoctorSchedule) (int, error) {
	queueNumber, err := u.quotaService.Reserve(ctx, schedule.ID)
	if errors.Is(err, service.ErrQuotaNotSynced) {
		// Keys expired or were never written; rebuild from the database once.
		if syncErr := u.quotaService.SyncSchedule(ctx, schedule); syncErr != nil {
			u.log.Warnf("Failed to resync quota for schedule %d: %+v", schedule.ID, syncErr)
			return 0, syncErr
		}
		queueNumber, err = u.quotaService.Reserve(ctx, schedule.ID)
	}
	if err != nil {
		if errors.Is(err, service.ErrQuotaFull) {
			return 0, service.ErrQuotaFull
		}
		u.log.Warnf("Failed Redis slot reservation for schedule %d: %+v", schedule.ID, err)
		return 0, err
	}
	return queueNumber, nil
}

func (u *patientAppointmentUsecase) insert(ctx context.Context, patientID uuid.UUID, schedule *entity.DoctorSchedule, slot availability.Interval, queueNumber int, notes string) (*entity.Appointment, error) {
	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	locked, err := u.scheduleRepo.FindByIDForUpdate(tx, schedule.ID)
	if err != nil {
		u.log.Warnf("Failed to lock schedule %d: %+v", schedule.ID, err)
		return nil, err
	}
	if locked == nil {
		return nil, ErrScheduleNotFound
	}

	date := availability.DateOnly(schedule.ScheduleDate)
	sameDay, err := u.appointmentRepo.FindBookedByDoctorsBetween(tx, []uuid.UUID{schedule.DoctorID}, date, date)
	if err != nil {
		u.log.Warnf("Failed to load appointments of doctor %s: %+v", schedule.DoctorID, err)
		return nil, err
	}
	if slotTaken(sameDay, slot) {
		return nil, ErrSlotTaken
	}

	duplicate, err := u.appointmentRepo.ExistsActiveForPatientOnDate(tx, patientID, schedule.Doctor.Specialization, date)
	if err != nil {
		u.log.Warnf("Failed to check existing appointments of patient %s: %+v", patientID, err)
		return nil, err
	}
	if duplicate {
		return nil, ErrAlreadyBooked
	}

	appointment := &entity.Appointment{
		PatientID:       patientID,
		DoctorID:        schedule.DoctorID,
		ScheduleID:      schedule.ID,
		AppointmentDate: date,
		StartTime:       slot.Start.Format(availability.ClockLayout),
		EndTime:         slot.End.Format(availability.ClockLayout),
		QueueNumber:     queueNumber,
		Status:          entity.AppointmentStatusScheduled,
		Notes:           notes,
	}
	if err := u.appointmentRepo.Create(tx, appointment); err != nil {
		u.log.Errorf("Failed to insert appointment: %+v", err)
		return nil, err
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &patientID,
		Action:   entity.AuditActionAppointmentBook,
		Entity:   "appointment",
		EntityID: appointment.ID.String(),
		NewValue: map[string]interface{}{
			"schedule_id":  schedule.ID,
			"date":         date.Format(availability.DateLayout),
			"start_time":   appointment.StartTime,
			"queue_number": queueNumber,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Errorf("Failed to commit appointment on schedule %d: %+v", schedule.ID, err)
		return nil, err
	}
	return appointment, nil
}

// CancelMyAppointment lets a patient drop their own appointment. No
// alternatives are offered since the patient chose to cancel.
func (u *patientAppointmentUsecase) CancelMyAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) error {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return ErrUserNotInContext
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	appointment, err := u.appointmentRepo.FindByIDForUpdate(tx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return err
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}
	if appointment.PatientID != userID {
		return ErrAppointmentNotOwned
	}
	if appointment.IsCancelled() {
		return ErrAppointmentAlreadyCancelled
	}
	if appointment.Status != entity.AppointmentStatusScheduled {
		return ErrAppointmentNotPending
	}

	at := u.now()
	affected, err := u.appointmentRepo.Cancel(tx, appointmentID, reason, at)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointmentID, err)
		return err
	}
	if affected == 0 {
		return ErrAppointmentAlreadyCancelled
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &userID,
		Action:   entity.AuditActionAppointmentCancel,
		Entity:   "appointment",
		EntityID: appointmentID.String(),
		OldValue: map[string]interface{}{"status": appointment.Status},
		NewValue: map[string]interface{}{"status": entity.AppointmentStatusCancelled},
		Extra:    entity.JSON{"reason": reason, "self_service": true},
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit cancellation of appointment %s: %+v", appointmentID, err)
		return err
	}

	// Queue numbers are never reused, only the quota comes back
	syncCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := u.quotaService.Release(syncCtx, appointment.ScheduleID); err != nil {
		u.log.Warnf("Failed to release Redis quota for schedule %d (non-fatal): %+v", appointment.ScheduleID, err)
	}

	u.log.Infof("Appointment cancelled by patient: id=%s, schedule=%d", appointmentID, appointment.ScheduleID)
	return nil
}

// GetAvailableSlots lists the free slots of a doctor on one date
func (u *patientAppointmentUsecase) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*dto.AvailableSlotsResponse, error) {
	day, err := time.Parse(availability.DateLayout, date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	db := u.db.WithContext(ctx)
	doctor, err := u.doctorRepo.FindByUserID(db, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	slots, err := u.recommender.FreeSlots(ctx, db, doctor, day)
	if err != nil {
		u.log.Warnf("Failed to compute free slots of doctor %s on %s: %+v", doctorID, date, err)
		return nil, err
	}

	return &dto.AvailableSlotsResponse{
		DoctorID: doctorID,
		Date:     day.Format(availability.DateLayout),
		Slots:    converter.RecommendationsToSlots(slots),
		Total:    len(slots),
	}, nil
}

// bookableSlot resolves a requested start time to a slot of the schedule.
func bookableSlot(schedule *entity.DoctorSchedule, startTime string, now time.Time) (availability.Interval, error) {
	date := availability.DateOnly(schedule.ScheduleDate)
	start, err := availability.At(date, startTime)
	if err != nil {
		return availability.Interval{}, ErrInvalidTimeFormat
	}
	windowStart, err := availability.At(date, schedule.StartTime)
	if err != nil {
		return availability.Interval{}, err
	}
	windowEnd, err := availability.At(date, schedule.EndTime)
	if err != nil {
		return availability.Interval{}, err
	}

	length := schedule.SlotLength()
	if !availability.OnGrid(windowStart, windowEnd, length, start) {
		return availability.Interval{}, ErrSlotNotOnGrid
	}
	if !start.After(now) {
		return availability.Interval{}, ErrSlotInPast
	}
	return availability.Interval{Start: start, End: start.Add(length)}, nil
}

// slotTaken reports whether any appointment holding a slot overlaps it
func slotTaken(appointments []entity.Appointment, slot availability.Interval) bool {
	for _, appointment := range appointments {
		if !appointment.HoldsSlot() {
			continue
		}
		start, err := availability.At(appointment.AppointmentDate, appointment.StartTime)
		if err != nil {
			continue
		}
		end, err := availability.At(appointment.AppointmentDate, appointment.EndTime)
		if err != nil {
			continue
		}
		if slot.Overlaps(availability.Interval{Start: start, End: end}) {
			return true
		}
	}
	return false
}
