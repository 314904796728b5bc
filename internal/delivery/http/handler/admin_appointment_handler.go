package handler

import (
	"encoding/json"
	"net/http"

	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/usecase"
	"caqm-backend/pkg/response"
	"caqm-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AdminAppointmentHandler struct {
	appointmentUsecase usecase.AdminAppointmentUsecase
	validator          *validator.CustomValidator
}

func NewAdminAppointmentHandler(appointmentUsecase usecase.AdminAppointmentUsecase, validator *validator.CustomValidator) *AdminAppointmentHandler {
	return &AdminAppointmentHandler{
		appointmentUsecase: appointmentUsecase,
		validator:          validator,
	}
}

// GetAppointments handles GET /admin/appointments?doctor_id=&date_from=&date_to=&status=
func (h *AdminAppointmentHandler) GetAppointments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := dto.AppointmentFilterRequest{
		DoctorID: query.Get("doctor_id"),
		DateFrom: query.Get("date_from"),
		DateTo:   query.Get("date_to"),
		Status:   query.Get("status"),
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointments, err := h.appointmentUsecase.GetAppointments(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrInvalidDateRange:
			response.BadRequest(w, "date_from must not be after date_to")
		case usecase.ErrInvalidDate:
			response.BadRequest(w, "Invalid date format, use YYYY-MM-DD")
		case usecase.ErrInvalidDoctorID:
			response.BadRequest(w, "Invalid doctor ID")
		default:
			response.InternalServerError(w, "Failed to get appointments")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointments retrieved successfully", appointments)
}

func (h *AdminAppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid appointment ID")
		return
	}

	var req dto.UpdateAppointmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.appointmentUsecase.UpdateStatus(r.Context(), appointmentID, &req)
	if err != nil {
		switch err {
		case usecase.ErrUserNotInContext:
			response.Unauthorized(w, "")
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		case usecase.ErrAppointmentNotOwned:
			response.Forbidden(w, "Appointment belongs to another doctor")
		case usecase.ErrInvalidStatusTransition:
			response.Conflict(w, "Appointment cannot move to that status")
		case usecase.ErrCheckInNotToday:
			response.BadRequest(w, "Check-in is only possible on the appointment date")
		case usecase.ErrAppointmentNotStarted:
			response.BadRequest(w, "Appointment has not started yet")
		default:
			response.InternalServerError(w, "Failed to update appointment status")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment status updated successfully", appointment)
}
