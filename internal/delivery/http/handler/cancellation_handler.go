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

type CancellationHandler struct {
	cancellationUsecase usecase.CancellationUsecase
	validator           *validator.CustomValidator
}

func NewCancellationHandler(cancellationUsecase usecase.CancellationUsecase, validator *validator.CustomValidator) *CancellationHandler {
	return &CancellationHandler{
		cancellationUsecase: cancellationUsecase,
		validator:           validator,
	}
}

func (h *CancellationHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid appointment ID")
		return
	}

	var req dto.CancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result, err := h.cancellationUsecase.CancelAppointment(r.Context(), appointmentID, &req)
	if err != nil {
		writeCancellationError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Appointment cancelled successfully", result)
}

func (h *CancellationHandler) CancelDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(mux.Vars(r)["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	var req dto.CancelDoctorAppointmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result, err := h.cancellationUsecase.CancelDoctorAppointments(r.Context(), doctorID, &req)
	if err != nil {
		writeCancellationError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Appointments cancelled successfully", result)
}

func (h *CancellationHandler) PreviewRecommendations(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid appointment ID")
		return
	}

	result, err := h.cancellationUsecase.PreviewRecommendations(r.Context(), appointmentID)
	if err != nil {
		switch err {
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		default:
			response.InternalServerError(w, "Failed to get recommendations")
		}
		return
	}

	response.Success(w, http.StatusOK, "Recommendations retrieved successfully", result)
}

func writeCancellationError(w http.ResponseWriter, err error) {
	switch err {
	case usecase.ErrUserNotInContext:
		response.Unauthorized(w, "")
	case usecase.ErrAppointmentNotFound:
		response.NotFound(w, "Appointment not found")
	case usecase.ErrDoctorNotFound:
		response.NotFound(w, "Doctor not found")
	case usecase.ErrNoActiveAppointments:
		response.NotFound(w, "No active appointments found to cancel")
	case usecase.ErrAppointmentAlreadyCancelled:
		response.Conflict(w, "Appointment is already cancelled")
	case usecase.ErrAppointmentFinished:
		response.Conflict(w, "Cannot cancel a completed or no-show appointment")
	case usecase.ErrAppointmentInPast:
		response.BadRequest(w, "Cannot cancel past appointments")
	case usecase.ErrInvalidDate:
		response.BadRequest(w, "Invalid date format, use YYYY-MM-DD")
	default:
		response.InternalServerError(w, "Failed to cancel appointment")
	}
}
