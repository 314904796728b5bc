package entity

import "github.com/google/uuid"

// DoctorProfile represents doctor-specific profile data
type DoctorProfile struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	LicenseNumber  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"license_number"`
	Specialization string    `gorm:"type:varchar(50);not null;index" json:"specialization"`
	Biography      string    `gorm:"type:text" json:"biography,omitempty"`

	// Relationships
	User      User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Schedules []DoctorSchedule `gorm:"foreignKey:DoctorID" json:"schedules,omitempty"`
}

func (DoctorProfile) TableName() string {
	return "doctor_profiles"
}

// DisplayName is the name shown to patients, e.g. "Dr. Jane Doe"
func (d *DoctorProfile) DisplayName() string {
	if d.User.FullName == "" {
		return "your doctor"
	}
	return "Dr. " + d.User.FullName
}

// Specialization constants
const (
	SpecializationCardiology  = "CARDIOLOGY"
	SpecializationDermatology = "DERMATOLOGY"
	SpecializationNeurology   = "NEUROLOGY"
	SpecializationOrthopedics = "ORTHOPEDICS"
	SpecializationPediatrics  = "PEDIATRICS"
	SpecializationPsychiatry  = "PSYCHIATRY"
	SpecializationGeneral     = "GENERAL"
)
