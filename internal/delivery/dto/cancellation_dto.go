package dto

import "github.com/google/uuid"

// Request DTOs

// CancelAppointmentRequest cancels one appointment, or with ApplyToAll every
// active appointment of the same doctor (only on Date when it is set).
type CancelAppointmentRequest struct {
	Reason     string `json:"reason" validate:"omitempty,max=500"`
	ApplyToAll bool   `json:"apply_to_all"`
	Date       string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type CancelDoctorAppointmentsRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Response DTOs

type RecommendationResponse struct {
	Kind           string    `json:"kind"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	ScheduleID     int       `json:"schedule_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
}

type CancelledAppointmentResponse struct {
	AppointmentID   uuid.UUID                `json:"appointment_id"`
	PatientID       uuid.UUID                `json:"patient_id"`
	PatientName     string                   `json:"patient_name"`
	AppointmentDate string                   `json:"appointment_date"`
	StartTime       string                   `json:"start_time"`
	NotificationID  uuid.UUID                `json:"notification_id"`
	Recommendations []RecommendationResponse `json:"recommendations"`
	DeliveryStatus  string                   `json:"delivery_status"`
}

type CancellationResponse struct {
	Cancelled []CancelledAppointmentResponse `json:"cancelled"`
	Total     int                            `json:"total"`
}

type RecommendationListResponse struct {
	AppointmentID   uuid.UUID                `json:"appointment_id"`
	Recommendations []RecommendationResponse `json:"recommendations"`
	Total           int                      `json:"total"`
}
