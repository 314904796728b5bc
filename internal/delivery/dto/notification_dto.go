package dto

import (
	"time"

	"github.com/google/uuid"
)

type NotificationResponse struct {
	ID              uuid.UUID                `json:"id"`
	Type            string                   `json:"type"`
	Title           string                   `json:"title"`
	Message         string                   `json:"message"`
	AppointmentID   *uuid.UUID               `json:"appointment_id,omitempty"`
	Recommendations []RecommendationResponse `json:"recommendations"`
	IsRead          bool                     `json:"is_read"`
	ReadAt          *time.Time               `json:"read_at,omitempty"`
	DeliveryStatus  string                   `json:"delivery_status"`
	CreatedAt       time.Time                `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
	UnreadCount   int64                  `json:"unread_count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
