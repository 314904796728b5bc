package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSlotDuration is used when a schedule does not set one
const DefaultSlotDuration = 30

// DoctorSchedule is one working block of a doctor on a given date.
// The block is cut into consecutive slots of SlotDuration minutes and at
// most TotalQuota of them can be held by active appointments.
type DoctorSchedule struct {
	ID           int       `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID     uuid.UUID `gorm:"type:uuid;not null;index" json:"doctor_id"`
	ScheduleDate time.Time `gorm:"type:date;not null;index" json:"schedule_date"`
	StartTime    string    `gorm:"type:time;not null" json:"start_time"`
	EndTime      string    `gorm:"type:time;not null" json:"end_time"`
	SlotDuration int       `gorm:"not null;default:30" json:"slot_duration"`
	TotalQuota   int       `gorm:"not null" json:"total_quota"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Doctor       DoctorProfile `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Appointments []Appointment `gorm:"foreignKey:ScheduleID" json:"appointments,omitempty"`
}

func (DoctorSchedule) TableName() string {
	return "doctor_schedules"
}

// SlotLength returns the slot duration, applying the default
func (s *DoctorSchedule) SlotLength() time.Duration {
	if s.SlotDuration <= 0 {
		return DefaultSlotDuration * time.Minute
	}
	return time.Duration(s.SlotDuration) * time.Minute
}
