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
	ErrInvalidStatusTransition = errors.New("appointment cannot move to that status")
	ErrCheckInNotToday         = errors.New("check-in is only possible on the appointment date")
	ErrAppointmentNotStarted   = errors.New("appointment has not started yet")
	ErrInvalidDateRange        = errors.New("date_from must not be after date_to")
	ErrInvalidDoctorID         = errors.New("invalid doctor ID")
)

// AdminAppointmentUsecase lets clinic staff find appointments and record
// what happened to them after booking.
type AdminAppointmentUsecase interface {
	GetAppointments(ctx context.Context, req *dto.AppointmentFilterRequest) (*dto.AppointmentListResponse, error)
	UpdateStatus(ctx context.Context, appointmentID uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error)
}

type adminAppointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	auditService    service.AuditService
	loc             *time.Location
	now             func() time.Time
}

func NewAdminAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	auditService service.AuditService,
	loc *time.Location,
) AdminAppointmentUsecase {
	return &adminAppointmentUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
		auditService:    auditService,
		loc:             loc,
		now:             time.Now,
	}
}

func (u *adminAppointmentUsecase) GetAppointments(ctx context.Context, req *dto.AppointmentFilterRequest) (*dto.AppointmentListResponse, error) {
	filter, err := appointmentFilterFrom(req)
	if err != nil {
		return nil, err
	}

	appointments, err := u.appointmentRepo.FindAll(u.db.WithContext(ctx), filter)
	if err != nil {
		u.log.Warnf("Failed to find appointments: %+v", err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// UpdateStatus records a check-in, completion or no-show. Doctors may only
// touch their own appointments. The slot stays held, so quota is unchanged.
func (u *adminAppointmentUsecase) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error) {
	actorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotInContext
	}
	roleID, _ := middleware.GetRoleIDFromContext(ctx)
	next := entity.AppointmentStatus(req.Status)

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
	if roleID == entity.RoleIDDoctor && appointment.DoctorID != actorID {
		return nil, ErrAppointmentNotOwned
	}
	if err := u.checkTransition(appointment, next); err != nil {
		return nil, err
	}

	previous := appointment.Status
	affected, err := u.appointmentRepo.UpdateStatus(tx, appointment.ID, previous, next)
	if err != nil {
		u.log.Warnf("Failed to update status of appointment %s: %+v", appointment.ID, err)
		return nil, err
	}
	if affected == 0 {
		return nil, ErrInvalidStatusTransition
	}
	appointment.Status = next

	if err := u.auditService.Record(ctx, tx, service.AuditEntry{
		ActorID:  &actorID,
		Action:   entity.AuditActionAppointmentStatus,
		Entity:   "appointment",
		EntityID: appointment.ID.String(),
		OldValue: map[string]interface{}{"status": previous},
		NewValue: map[string]interface{}{"status": next},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit status of appointment %s: %+v", appointment.ID, err)
		return nil, err
	}

	u.log.Infof("Appointment status changed: id=%s, %s -> %s", appointment.ID, previous, next)
	return converter.AppointmentToResponse(appointment), nil
}

// checkTransition allows check-in on the appointment date only, and
// completion or no-show once the slot has started.
func (u *adminAppointmentUsecase) checkTransition(appointment *entity.Appointment, next entity.AppointmentStatus) error {
	if !appointment.CanMoveTo(next) {
		return ErrInvalidStatusTransition
	}

	now := availability.WallClock(u.now(), u.loc)
	switch next {
	case entity.AppointmentStatusCheckedIn:
		if !availability.DateOnly(appointment.AppointmentDate).Equal(availability.DateOnly(now)) {
			return ErrCheckInNotToday
		}
	case entity.AppointmentStatusCompleted, entity.AppointmentStatusNoShow:
		start, err := availability.At(appointment.AppointmentDate, appointment.StartTime)
		if err != nil {
			return err
		}
		if start.After(now) {
			return ErrAppointmentNotStarted
		}
	}
	return nil
}

func appointmentFilterFrom(req *dto.AppointmentFilterRequest) (*entity.AppointmentFilter, error) {
	filter := &entity.AppointmentFilter{Status: entity.AppointmentStatus(req.Status)}

	if req.DoctorID != "" {
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			return nil, ErrInvalidDoctorID
		}
		filter.DoctorID = &doctorID
	}
	if req.DateFrom != "" {
		from, err := time.Parse(availability.DateLayout, req.DateFrom)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.From = &from
	}
	if req.DateTo != "" {
		to, err := time.Parse(availability.DateLayout, req.DateTo)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, ErrInvalidDateRange
	}
	return filter, nil
}
