package usecase

import (
	"context"
	"errors"
	"strconv"
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
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrScheduleNotFound        = errors.New("schedule not found")
	ErrInvalidScheduleDate     = errors.New("invalid schedule date format, use YYYY-MM-DD")
	ErrInvalidTimeFormat       = errors.New("invalid time format, use HH:MM")
	ErrInvalidScheduleWindow   = errors.New("end time must be after start time and fit at least one slot")
	ErrScheduleHasAppointments = errors.New("schedule has active appointments")
	ErrQuotaBelowBooked        = errors.New("total quota cannot be lower than the number of active appointments")
)

type DoctorScheduleUsecase interface {
	CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error)
	GetSchedule(ctx context.Context, scheduleID int) (*dto.ScheduleResponse, error)
	GetSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.ScheduleListResponse, error)
	GetAllSchedules(ctx context.Context) (*dto.ScheduleListResponse, error)
	UpdateSchedule(ctx context.Context, scheduleID int, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error)
	DeleteSchedule(ctx context.Context, scheduleID int) error
}

type doctorScheduleUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	scheduleRepo      repository.DoctorScheduleRepository
	doctorProfileRepo repository.DoctorProfileRepository
	appointmentRepo   repository.AppointmentRepository
	auditService      service.AuditService
	quotaService      service.ScheduleQuotaService
}

func NewDoctorScheduleUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	scheduleRepo repository.DoctorScheduleRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	appointmentRepo repository.AppointmentRepository,
	auditService service.AuditService,
	quotaService service.ScheduleQuotaService,
) DoctorScheduleUsecase {
	return &doctorScheduleUsecase{
		db:                db,
		log:               log,
		scheduleRepo:      scheduleRepo,
		doctorProfileRepo: doctorProfileRepo,
		appointmentRepo:   appointmentRepo,
		auditService:      auditService,
		quotaService:      quotaService,
	}
}

func (u *doctorScheduleUsecase) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	actorID, _ := middleware.GetUserIDFromContext(ctx)

	doctor, err := u.doctorProfileRepo.FindByUserID(u.db.WithContext(ctx), req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor: %+v", err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	scheduleDate, err := time.Parse(availability.DateLayout, req.ScheduleDate)
	if err != nil {
		return nil, ErrInvalidScheduleDate
	}

	schedule := &entity.DoctorSchedule{
		DoctorID:     req.DoctorID,
		ScheduleDate: scheduleDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SlotDuration: req.SlotDuration,
		TotalQuota:   req.TotalQuota,
	}
	if schedule.SlotDuration == 0 {
		schedule.SlotDuration = entity.DefaultSlotDuration
	}
	if err := validateScheduleWindow(schedule); err != nil {
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.scheduleRepo.Create(tx, schedule); err != nil {
		u.log.Warnf("Failed to create schedule: %+v", err)
		return nil, err
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  actorOrNil(actorID),
		Action:   entity.AuditActionScheduleCreate,
		Entity:   "doctor_schedule",
		EntityID: strconv.Itoa(schedule.ID),
		NewValue: scheduleSnapshot(schedule),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit schedule creation: %+v", err)
		return nil, err
	}

	if err := u.quotaService.SyncSchedule(ctx, schedule); err != nil {
		// Booking resyncs lazily when the keys are missing
		u.log.Warnf("Failed to cache quota for new schedule %d (non-fatal): %+v", schedule.ID, err)
	}

	schedule.Doctor = *doctor
	return converter.ScheduleToResponse(schedule), nil
}

func (u *doctorScheduleUsecase) GetSchedule(ctx context.Context, scheduleID int) (*dto.ScheduleResponse, error) {
	schedule, err := u.scheduleRepo.FindByID(u.db.WithContext(ctx), scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule: %+v", err)
		return nil, err
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}

	return converter.ScheduleToResponse(schedule), nil
}

func (u *doctorScheduleUsecase) GetSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.ScheduleListResponse, error) {
	schedules, err := u.scheduleRepo.FindByDoctorID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find schedules: %+v", err)
		return nil, err
	}

	return &dto.ScheduleListResponse{
		Schedules: converter.SchedulesToResponses(schedules),
		Total:     len(schedules),
	}, nil
}

func (u *doctorScheduleUsecase) GetAllSchedules(ctx context.Context) (*dto.ScheduleListResponse, error) {
	schedules, err := u.scheduleRepo.FindAll(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to find all schedules: %+v", err)
		return nil, err
	}

	return &dto.ScheduleListResponse{
		Schedules: converter.SchedulesToResponses(schedules),
		Total:     len(schedules),
	}, nil
}

// UpdateSchedule changes a schedule. Date, hours and slot length are frozen
// once appointments exist; the quota may still change but not below the
// number of active appointments.
func (u *doctorScheduleUsecase) UpdateSchedule(ctx context.Context, scheduleID int, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error) {
	actorID, _ := middleware.GetUserIDFromContext(ctx)

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	schedule, err := u.scheduleRepo.FindByIDForUpdate(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule: %+v", err)
		return nil, err
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	before := scheduleSnapshot(schedule)
	oldQuota := schedule.TotalQuota
	oldDate := schedule.ScheduleDate

	booked, err := u.appointmentRepo.CountBookedBySchedule(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to count appointments of schedule %d: %+v", scheduleID, err)
		return nil, err
	}

	reshaped := req.ScheduleDate != "" || req.StartTime != "" || req.EndTime != "" || req.SlotDuration != nil
	if reshaped && booked > 0 {
		return nil, ErrScheduleHasAppointments
	}

	if req.ScheduleDate != "" {
		scheduleDate, err := time.Parse(availability.DateLayout, req.ScheduleDate)
		if err != nil {
			return nil, ErrInvalidScheduleDate
		}
		schedule.ScheduleDate = scheduleDate
	}
	if req.StartTime != "" {
		schedule.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		schedule.EndTime = req.EndTime
	}
	if req.SlotDuration != nil {
		schedule.SlotDuration = *req.SlotDuration
	}
	if req.TotalQuota != nil {
		if int64(*req.TotalQuota) < booked {
			return nil, ErrQuotaBelowBooked
		}
		schedule.TotalQuota = *req.TotalQuota
	}
	if err := validateScheduleWindow(schedule); err != nil {
		return nil, err
	}

	if err := u.scheduleRepo.Update(tx, schedule); err != nil {
		u.log.Warnf("Failed to update schedule: %+v", err)
		return nil, err
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  actorOrNil(actorID),
		Action:   entity.AuditActionScheduleUpdate,
		Entity:   "doctor_schedule",
		EntityID: strconv.Itoa(schedule.ID),
		OldValue: before,
		NewValue: scheduleSnapshot(schedule),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit schedule update: %+v", err)
		return nil, err
	}

	if !schedule.ScheduleDate.Equal(oldDate) {
		err = u.quotaService.SyncSchedule(ctx, schedule)
	} else {
		err = u.quotaService.AdjustQuota(ctx, schedule.ID, schedule.TotalQuota-oldQuota, schedule.ScheduleDate)
	}
	if err != nil {
		u.log.Warnf("Failed to refresh cached quota for schedule %d (non-fatal): %+v", schedule.ID, err)
	}

	updated, err := u.scheduleRepo.FindByID(u.db.WithContext(ctx), schedule.ID)
	if err != nil || updated == nil {
		return converter.ScheduleToResponse(schedule), nil
	}
	return converter.ScheduleToResponse(updated), nil
}

// DeleteSchedule removes a schedule without active appointments. Cancel
// its appointments first so patients are notified.
func (u *doctorScheduleUsecase) DeleteSchedule(ctx context.Context, scheduleID int) error {
	actorID, _ := middleware.GetUserIDFromContext(ctx)

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	schedule, err := u.scheduleRepo.FindByIDForUpdate(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to find schedule: %+v", err)
		return err
	}
	if schedule == nil {
		return ErrScheduleNotFound
	}

	booked, err := u.appointmentRepo.CountBookedBySchedule(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to count appointments of schedule %d: %+v", scheduleID, err)
		return err
	}
	if booked > 0 {
		return ErrScheduleHasAppointments
	}

	affected, err := u.scheduleRepo.Delete(tx, scheduleID)
	if err != nil {
		u.log.Warnf("Failed to delete schedule: %+v", err)
		return err
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  actorOrNil(actorID),
		Action:   entity.AuditActionScheduleDelete,
		Entity:   "doctor_schedule",
		EntityID: strconv.Itoa(scheduleID),
		OldValue: scheduleSnapshot(schedule),
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit schedule deletion: %+v", err)
		return err
	}

	if err := u.quotaService.DeleteSchedule(ctx, scheduleID); err != nil {
		u.log.Warnf("Failed to drop cached quota for schedule %d (non-fatal): %+v", scheduleID, err)
	}
	return nil
}

// validateScheduleWindow checks the hours parse and hold at least one slot
func validateScheduleWindow(schedule *entity.DoctorSchedule) error {
	start, err := availability.ParseClock(schedule.StartTime)
	if err != nil {
		return ErrInvalidTimeFormat
	}
	end, err := availability.ParseClock(schedule.EndTime)
	if err != nil {
		return ErrInvalidTimeFormat
	}
	if end-start < schedule.SlotLength() {
		return ErrInvalidScheduleWindow
	}
	return nil
}

func scheduleSnapshot(schedule *entity.DoctorSchedule) map[string]interface{} {
	return map[string]interface{}{
		"doctor_id":     schedule.DoctorID,
		"schedule_date": schedule.ScheduleDate.Format(availability.DateLayout),
		"start_time":    availability.NormalizeClock(schedule.StartTime),
		"end_time":      availability.NormalizeClock(schedule.EndTime),
		"slot_duration": schedule.SlotDuration,
		"total_quota":   schedule.TotalQuota,
	}
}

func actorOrNil(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
