package usecase

import (
	"context"
	"strings"

	"caqm-backend/internal/converter"
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DoctorProfileUsecase is the read-only doctor directory patients browse
// before looking up free slots. Accounts are managed by the identity service.
type DoctorProfileUsecase interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.DoctorResponse, error)
	GetAllDoctors(ctx context.Context, specialization string) (*dto.DoctorListResponse, error)
}

type doctorProfileUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	doctorProfileRepo repository.DoctorProfileRepository
}

func NewDoctorProfileUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorProfileRepo repository.DoctorProfileRepository,
) DoctorProfileUsecase {
	return &doctorProfileUsecase{
		db:                db,
		log:               log,
		doctorProfileRepo: doctorProfileRepo,
	}
}

func (u *doctorProfileUsecase) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.DoctorResponse, error) {
	profile, err := u.doctorProfileRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor profile %s: %+v", doctorID, err)
		return nil, err
	}
	if profile == nil || !profile.User.Active() {
		return nil, ErrDoctorNotFound
	}

	return converter.DoctorProfileToResponse(profile), nil
}

// GetAllDoctors lists active doctors; specialization matching ignores case.
func (u *doctorProfileUsecase) GetAllDoctors(ctx context.Context, specialization string) (*dto.DoctorListResponse, error) {
	profiles, err := u.doctorProfileRepo.FindActive(u.db.WithContext(ctx), strings.ToUpper(strings.TrimSpace(specialization)))
	if err != nil {
		u.log.Warnf("Failed to find doctor profiles: %+v", err)
		return nil, err
	}

	doctors := converter.DoctorProfilesToResponses(profiles)

	return &dto.DoctorListResponse{
		Doctors: doctors,
		Total:   len(doctors),
	}, nil
}
