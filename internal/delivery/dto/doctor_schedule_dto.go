package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateScheduleRequest struct {
	DoctorID     uuid.UUID `json:"doctor_id" validate:"required"`
	ScheduleDate string    `json:"schedule_date" validate:"required,datetime=2006-01-02"`
	StartTime    string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string    `json:"end_time" validate:"required,datetime=15:04"`
	SlotDuration int       `json:"slot_duration" validate:"omitempty,min=5,max=240"` // minutes, default 30
	TotalQuota   int       `json:"total_quota" validate:"required,min=1"`
}

type UpdateScheduleRequest struct {
	ScheduleDate string `json:"schedule_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"omitempty,datetime=15:04"`
	SlotDuration *int   `json:"slot_duration" validate:"omitempty,min=5,max=240"`
	TotalQuota   *int   `json:"total_quota" validate:"omitempty,min=1"`
}

// Response DTOs

type ScheduleResponse struct {
	ID           int             `json:"id"`
	DoctorID     uuid.UUID       `json:"doctor_id"`
	Doctor       *DoctorResponse `json:"doctor,omitempty"`
	ScheduleDate string          `json:"schedule_date"`
	StartTime    string          `json:"start_time"`
	EndTime      string          `json:"end_time"`
	SlotDuration int             `json:"slot_duration"`
	TotalQuota   int             `json:"total_quota"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ScheduleListResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
	Total     int                `json:"total"`
}
