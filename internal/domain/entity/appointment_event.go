package entity

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeAppointmentCancelled = "appointment.cancelled"

// AppointmentCancelledEvent is published after a cancellation commits
type AppointmentCancelledEvent struct {
	EventID             uuid.UUID  `json:"event_id"`
	AppointmentID       uuid.UUID  `json:"appointment_id"`
	PatientID           uuid.UUID  `json:"patient_id"`
	DoctorID            uuid.UUID  `json:"doctor_id"`
	ScheduleID          int        `json:"schedule_id"`
	AppointmentDate     string     `json:"appointment_date"`
	StartTime           string     `json:"start_time"`
	Reason              string     `json:"reason"`
	CancelledBy         *uuid.UUID `json:"cancelled_by,omitempty"`
	Bulk                bool       `json:"bulk"`
	NotificationID      uuid.UUID  `json:"notification_id"`
	RecommendationCount int        `json:"recommendation_count"`
	OccurredAt          time.Time  `json:"occurred_at"`
}
