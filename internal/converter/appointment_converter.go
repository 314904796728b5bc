package converter

import (
	"caqm-backend/internal/availability"
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/domain/entity"
)

// AppointmentToResponse converts an Appointment entity to AppointmentResponse DTO
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	return &dto.AppointmentResponse{
		ID:              appointment.ID,
		PatientID:       appointment.PatientID,
		PatientName:     appointment.Patient.User.FullName,
		DoctorID:        appointment.DoctorID,
		Doctor:          DoctorProfileToResponse(&appointment.Doctor),
		ScheduleID:      appointment.ScheduleID,
		AppointmentDate: appointment.AppointmentDate.Format(availability.DateLayout),
		StartTime:       availability.NormalizeClock(appointment.StartTime),
		EndTime:         availability.NormalizeClock(appointment.EndTime),
		QueueNumber:     appointment.QueueNumber,
		Status:          string(appointment.Status),
		Notes:           appointment.Notes,
		CancelReason:    appointment.CancelReason,
		CancelledAt:     appointment.CancelledAt,
		CreatedAt:       appointment.CreatedAt,
		UpdatedAt:       appointment.UpdatedAt,
	}
}

func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appointments))
	for i := range appointments {
		responses[i] = *AppointmentToResponse(&appointments[i])
	}
	return responses
}

// RecommendationsToSlots lists free slots without the doctor details
func RecommendationsToSlots(list entity.RecommendationList) []dto.SlotResponse {
	slots := make([]dto.SlotResponse, len(list))
	for i, r := range list {
		slots[i] = dto.SlotResponse{
			ScheduleID: r.ScheduleID,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
		}
	}
	return slots
}
