package converter

import (
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
)

// UserToResponse returns nil when the user was not loaded
func UserToResponse(user *entity.User) *dto.UserResponse {
	if user == nil || user.ID == uuid.Nil {
		return nil
	}

	return &dto.UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	}
}
