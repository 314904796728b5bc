package converter

import (
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/entity"
)

// RecommendationsToResponses always returns a non-nil slice so the JSON is [] not null
func RecommendationsToResponses(list entity.RecommendationList) []dto.RecommendationResponse {
	responses := make([]dto.RecommendationResponse, len(list))
	for i, r := range list {
		responses[i] = dto.RecommendationResponse{
			Kind:           string(r.Kind),
			DoctorID:       r.DoctorID,
			DoctorName:     r.DoctorName,
			Specialization: r.Specialization,
			ScheduleID:     r.ScheduleID,
			Date:           r.Date,
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
		}
	}
	return responses
}

func NotificationToResponse(notification *entity.Notification) *dto.NotificationResponse {
	if notification == nil {
		return nil
	}

	return &dto.NotificationResponse{
		ID:              notification.ID,
		Type:            string(notification.Type),
		Title:           notification.Title,
		Message:         notification.Message,
		AppointmentID:   notification.AppointmentID,
		Recommendations: RecommendationsToResponses(notification.Recommendations),
		IsRead:          notification.IsRead,
		ReadAt:          notification.ReadAt,
		DeliveryStatus:  string(notification.DeliveryStatus),
		CreatedAt:       notification.CreatedAt,
	}
}

func NotificationsToResponses(notifications []entity.Notification) []dto.NotificationResponse {
	responses := make([]dto.NotificationResponse, len(notifications))
	for i := range notifications {
		responses[i] = *NotificationToResponse(&notifications[i])
	}
	return responses
}
