package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// ActiveAppointmentStatuses are visits that have not happened yet and can
// still be cancelled.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusCheckedIn,
}

// BookedAppointmentStatuses hold their slot and count against a schedule quota.
// Attended and missed visits keep the slot they used.
var BookedAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusCheckedIn,
	AppointmentStatusCompleted,
	AppointmentStatusNoShow,
}

// appointmentTransitions lists the moves allowed after booking. Cancellation
// has its own flow and is not part of this table.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCheckedIn, AppointmentStatusCompleted, AppointmentStatusNoShow},
	AppointmentStatusCheckedIn: {AppointmentStatusCompleted, AppointmentStatusNoShow},
}

// Appointment is a patient's booking of one slot on a doctor schedule
type Appointment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatientID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_patient_date,priority:1" json:"patient_id"`
	DoctorID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_doctor_date,priority:1" json:"doctor_id"`
	ScheduleID      int               `gorm:"not null;index" json:"schedule_id"`
	AppointmentDate time.Time         `gorm:"type:date;not null;index:idx_appointments_doctor_date,priority:2;index:idx_appointments_patient_date,priority:2" json:"appointment_date"`
	StartTime       string            `gorm:"type:time;not null" json:"start_time"`
	EndTime         string            `gorm:"type:time;not null" json:"end_time"`
	QueueNumber     int               `gorm:"not null;default:0" json:"queue_number"`
	Status          AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	Notes           string            `gorm:"type:text" json:"notes,omitempty"`
	CancelReason    string            `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient  PatientProfile `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor   DoctorProfile  `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Schedule DoctorSchedule `gorm:"foreignKey:ScheduleID" json:"schedule,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsActive reports whether the appointment still holds its slot
func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentStatusScheduled || a.Status == AppointmentStatusCheckedIn
}

// HoldsSlot reports whether the appointment occupies its slot and quota
func (a *Appointment) HoldsSlot() bool {
	return a.Status != AppointmentStatusCancelled
}

// CanMoveTo reports whether the visit may move from its current status to next
func (a *Appointment) CanMoveTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[a.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCancelled checks if appointment is cancelled
func (a *Appointment) IsCancelled() bool {
	return a.Status == AppointmentStatusCancelled
}

// IsFinished reports whether the visit already happened or was missed
func (a *Appointment) IsFinished() bool {
	return a.Status == AppointmentStatusCompleted || a.Status == AppointmentStatusNoShow
}
