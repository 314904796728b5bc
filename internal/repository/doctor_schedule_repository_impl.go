package repository

import (
	"errors"

	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"
	domainRepo "caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type doctorScheduleRepository struct{}

func NewDoctorScheduleRepository() domainRepo.DoctorScheduleRepository {
	return &doctorScheduleRepository{}
}

func (r *doctorScheduleRepository) Create(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	return db.Omit("Doctor").Create(schedule).Error
}

func (r *doctorScheduleRepository) FindByID(db *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Preload("Doctor.User").Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// FindByIDForUpdate locks the schedule row so bookings on it are serialized.
func (r *doctorScheduleRepository) FindByIDForUpdate(db *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	var schedule entity.DoctorSchedule
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *doctorScheduleRepository) FindByDoctorID(db *gorm.DB, doctorID uuid.UUID) ([]entity.DoctorSchedule, error) {
	var schedules []entity.DoctorSchedule
	err := db.Where("doctor_id = ?", doctorID).Order("schedule_date ASC, start_time ASC").Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *doctorScheduleRepository) FindAll(db *gorm.DB) ([]entity.DoctorSchedule, error) {
	var schedules []entity.DoctorSchedule
	err := db.Preload("Doctor.User").Order("schedule_date ASC, start_time ASC").Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindByFilter returns schedules of the given doctors inside an optional date range.
// An empty DoctorIDs list matches nothing.
func (r *doctorScheduleRepository) FindByFilter(db *gorm.DB, filter *entity.ScheduleFilter) ([]entity.DoctorSchedule, error) {
	var schedules []entity.DoctorSchedule
	if filter == nil || len(filter.DoctorIDs) == 0 {
		return schedules, nil
	}

	query := db.Where("doctor_id IN ?", filter.DoctorIDs)
	if filter.From != nil {
		query = query.Where("schedule_date >= ?", filter.From.Format(availability.DateLayout))
	}
	if filter.To != nil {
		query = query.Where("schedule_date <= ?", filter.To.Format(availability.DateLayout))
	}

	err := query.Order("schedule_date ASC, start_time ASC").Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *doctorScheduleRepository) Update(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	return db.Omit("Doctor", "Appointments").Save(schedule).Error
}

func (r *doctorScheduleRepository) Delete(db *gorm.DB, id int) (int64, error) {
	affected := db.Where("id = ?", id).Delete(&entity.DoctorSchedule{})
	return affected.RowsAffected, affected.Error
}
