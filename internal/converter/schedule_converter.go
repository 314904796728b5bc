package converter

import (
	"caqm-backend/internal/availability"
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/entity"
)

// ScheduleToResponse converts a DoctorSchedule entity to ScheduleResponse DTO
func ScheduleToResponse(schedule *entity.DoctorSchedule) *dto.ScheduleResponse {
	if schedule == nil {
		return nil
	}

	return &dto.ScheduleResponse{
		ID:           schedule.ID,
		DoctorID:     schedule.DoctorID,
		Doctor:       DoctorProfileToResponse(&schedule.Doctor),
		ScheduleDate: schedule.ScheduleDate.Format(availability.DateLayout),
		StartTime:    availability.NormalizeClock(schedule.StartTime),
		EndTime:      availability.NormalizeClock(schedule.EndTime),
		SlotDuration: int(schedule.SlotLength().Minutes()),
		TotalQuota:   schedule.TotalQuota,
		CreatedAt:    schedule.CreatedAt,
		UpdatedAt:    schedule.UpdatedAt,
	}
}

func SchedulesToResponses(schedules []entity.DoctorSchedule) []dto.ScheduleResponse {
	responses := make([]dto.ScheduleResponse, len(schedules))
	for i := range schedules {
		responses[i] = *ScheduleToResponse(&schedules[i])
	}
	return responses
}
