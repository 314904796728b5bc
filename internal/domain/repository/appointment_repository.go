package repository

import (
	"time"

	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository interface {
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	FindByPatientID(db *gorm.DB, patientID uuid.UUID) ([]entity.Appointment, error)
	FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, error)
	FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID, from time.Time, on *time.Time) ([]entity.Appointment, error)
	FindBookedByDoctorsBetween(db *gorm.DB, doctorIDs []uuid.UUID, from, to time.Time) ([]entity.Appointment, error)
	ExistsActiveForPatientOnDate(db *gorm.DB, patientID uuid.UUID, specialization string, date time.Time) (bool, error)
	CountBookedBySchedule(db *gorm.DB, scheduleID int) (int64, error)
	MaxQueueNumber(db *gorm.DB, scheduleID int) (int, error)
	Cancel(db *gorm.DB, id uuid.UUID, reason string, at time.Time) (int64, error)
	UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error)
}
