package dto

import "github.com/google/uuid"

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	Specialization string    `json:"specialization"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
}
