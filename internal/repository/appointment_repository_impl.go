package repository

import (
	"errors"
	"time"

	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"
	domainRepo "caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type appointmentRepository struct{}

func NewAppointmentRepository() domainRepo.AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(db *gorm.DB, appointment *entity.Appointment) error {
	return db.Omit(clause.Associations).Create(appointment).Error
}

func (r *appointmentRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Preload("Doctor.User").Preload("Patient.User").Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

// FindByIDForUpdate locks the appointment row for the rest of the transaction
// and then loads it with its doctor and patient.
func (r *appointmentRepository) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var locked entity.Appointment
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&locked).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(db, id)
}

func (r *appointmentRepository) FindByPatientID(db *gorm.DB, patientID uuid.UUID) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.Preload("Doctor.User").
		Where("patient_id = ?", patientID).
		Order("appointment_date DESC, start_time DESC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindAll lists appointments newest first, narrowed by the filter.
func (r *appointmentRepository) FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	query := db.Preload("Doctor.User").Preload("Patient.User")
	if filter != nil {
		if filter.DoctorID != nil {
			query = query.Where("doctor_id = ?", *filter.DoctorID)
		}
		if filter.From != nil {
			query = query.Where("appointment_date >= ?", filter.From.Format(availability.DateLayout))
		}
		if filter.To != nil {
			query = query.Where("appointment_date <= ?", filter.To.Format(availability.DateLayout))
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
	}

	err := query.Order("appointment_date DESC, start_time DESC").Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindActiveByDoctor returns the doctor's active appointments from the given date
// onwards, or only those on a single date when on is set.
func (r *appointmentRepository) FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID, from time.Time, on *time.Time) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	query := db.Preload("Doctor.User").Preload("Patient.User").
		Where("doctor_id = ? AND status IN ?", doctorID, entity.ActiveAppointmentStatuses).
		Where("appointment_date >= ?", from.Format(availability.DateLayout))
	if on != nil {
		query = query.Where("appointment_date = ?", on.Format(availability.DateLayout))
	}

	err := query.Order("appointment_date ASC, start_time ASC").Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindBookedByDoctorsBetween returns every appointment that still holds a slot,
// attended and missed visits included.
func (r *appointmentRepository) FindBookedByDoctorsBetween(db *gorm.DB, doctorIDs []uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}
	var appointments []entity.Appointment
	err := db.
		Where("doctor_id IN ? AND status IN ?", doctorIDs, entity.BookedAppointmentStatuses).
		Where("appointment_date BETWEEN ? AND ?", from.Format(availability.DateLayout), to.Format(availability.DateLayout)).
		Order("appointment_date ASC, start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// ExistsActiveForPatientOnDate checks whether the patient already holds an active
// appointment with a doctor of the given specialization on that date.
func (r *appointmentRepository) ExistsActiveForPatientOnDate(db *gorm.DB, patientID uuid.UUID, specialization string, date time.Time) (bool, error) {
	var count int64
	err := db.Model(&entity.Appointment{}).
		Joins("JOIN doctor_profiles ON doctor_profiles.user_id = appointments.doctor_id").
		Where("appointments.patient_id = ? AND appointments.status IN ?", patientID, entity.ActiveAppointmentStatuses).
		Where("appointments.appointment_date = ?", date.Format(availability.DateLayout)).
		Where("doctor_profiles.specialization = ?", specialization).
		Count(&count).Error
	return count > 0, err
}

func (r *appointmentRepository) CountBookedBySchedule(db *gorm.DB, scheduleID int) (int64, error) {
	var count int64
	err := db.Model(&entity.Appointment{}).
		Where("schedule_id = ? AND status IN ?", scheduleID, entity.BookedAppointmentStatuses).
		Count(&count).Error
	return count, err
}

// MaxQueueNumber returns the highest queue number ever issued on a schedule,
// including cancelled appointments, since queue numbers are never reused.
func (r *appointmentRepository) MaxQueueNumber(db *gorm.DB, scheduleID int) (int, error) {
	var max int
	err := db.Model(&entity.Appointment{}).
		Select("COALESCE(MAX(queue_number), 0)").
		Where("schedule_id = ?", scheduleID).
		Scan(&max).Error
	return max, err
}

// Cancel atomically cancels an appointment ONLY if it is still active.
// Returns affected rows: 1 = success, 0 = no longer active (prevents double-cancel race).
func (r *appointmentRepository) Cancel(db *gorm.DB, id uuid.UUID, reason string, at time.Time) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status IN ?", id, entity.ActiveAppointmentStatuses).
		Updates(map[string]interface{}{
			"status":        entity.AppointmentStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  at,
		})
	return result.RowsAffected, result.Error
}

// UpdateStatus moves an appointment from one status to another. Returns 0 when
// the row is no longer in the expected status.
func (r *appointmentRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}
