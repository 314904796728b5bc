package repository

import (
	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DoctorProfileRepository interface {
	FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.DoctorProfile, error)
	FindActive(db *gorm.DB, specialization string) ([]entity.DoctorProfile, error)
	FindActiveBySpecialization(db *gorm.DB, specialization string, excludeID uuid.UUID) ([]entity.DoctorProfile, error)
}
