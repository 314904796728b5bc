package converter

import (
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
)

// DoctorProfileToResponse returns nil when the profile was not loaded
func DoctorProfileToResponse(profile *entity.DoctorProfile) *dto.DoctorResponse {
	if profile == nil || profile.UserID == uuid.Nil {
		return nil
	}

	return &dto.DoctorResponse{
		ID:             profile.UserID,
		Email:          profile.User.Email,
		FullName:       profile.User.FullName,
		LicenseNumber:  profile.LicenseNumber,
		Specialization: profile.Specialization,
	}
}

func DoctorProfilesToResponses(profiles []entity.DoctorProfile) []dto.DoctorResponse {
	responses := make([]dto.DoctorResponse, 0, len(profiles))
	for i := range profiles {
		if resp := DoctorProfileToResponse(&profiles[i]); resp != nil {
			responses = append(responses, *resp)
		}
	}
	return responses
}
