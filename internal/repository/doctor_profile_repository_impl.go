package repository

import (
	"errors"

	"caqm-backend/internal/domain/entity"
	domainRepo "caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type doctorProfileRepository struct{}

func NewDoctorProfileRepository() domainRepo.DoctorProfileRepository {
	return &doctorProfileRepository{}
}

func (r *doctorProfileRepository) FindByUserID(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorProfile, error) {
	var profile entity.DoctorProfile
	err := db.Preload("User").Where("user_id = ?", doctorID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// FindActive lists doctors with an active account, optionally narrowed to
// one specialization.
func (r *doctorProfileRepository) FindActive(db *gorm.DB, specialization string) ([]entity.DoctorProfile, error) {
	var profiles []entity.DoctorProfile
	query := db.
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("users.is_active = ?", true)
	if specialization != "" {
		query = query.Where("doctor_profiles.specialization = ?", specialization)
	}

	err := query.Preload("User").Order("users.full_name ASC").Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// FindActiveBySpecialization lists doctors sharing a specialization whose user
// account is active, excluding one doctor (usually the one whose slot was cancelled).
func (r *doctorProfileRepository) FindActiveBySpecialization(db *gorm.DB, specialization string, excludeID uuid.UUID) ([]entity.DoctorProfile, error) {
	var profiles []entity.DoctorProfile
	err := db.
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("users.is_active = ?", true).
		Where("doctor_profiles.specialization = ? AND doctor_profiles.user_id <> ?", specialization, excludeID).
		Preload("User").
		Order("users.full_name ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
