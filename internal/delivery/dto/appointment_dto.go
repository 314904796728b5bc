package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type BookAppointmentRequest struct {
	ScheduleID int    `json:"schedule_id" validate:"required,min=1"`
	StartTime  string `json:"start_time" validate:"required,datetime=15:04"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`
}

type CancelMyAppointmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AppointmentFilterRequest holds the admin listing query parameters
type AppointmentFilterRequest struct {
	DoctorID string `json:"doctor_id" validate:"omitempty,uuid"`
	DateFrom string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Status   string `json:"status" validate:"omitempty,oneof=scheduled checked_in completed cancelled no_show"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=checked_in completed no_show"`
}

// Response DTOs

type AppointmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	PatientName     string          `json:"patient_name,omitempty"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	Doctor          *DoctorResponse `json:"doctor,omitempty"`
	ScheduleID      int             `json:"schedule_id"`
	AppointmentDate string          `json:"appointment_date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	QueueNumber     int             `json:"queue_number"`
	Status          string          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

type SlotResponse struct {
	ScheduleID int    `json:"schedule_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type AvailableSlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
	Total    int            `json:"total"`
}
