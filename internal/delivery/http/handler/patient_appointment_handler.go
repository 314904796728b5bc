package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/service"
	"caqm-backend/internal/usecase"
	"caqm-backend/pkg/response"
	"caqm-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type PatientAppointmentHandler struct {
	appointmentUsecase usecase.PatientAppointmentUsecase
	validator          *validator.CustomValidator
}

func NewPatientAppointmentHandler(appointmentUsecase usecase.PatientAppointmentUsecase, validator *validator.CustomValidator) *PatientAppointmentHandler {
	return &PatientAppointmentHandler{
		appointmentUsecase: appointmentUsecase,
		validator:          validator,
	}
}

func (h *PatientAppointmentHandler) GetMyAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.appointmentUsecase.GetMyAppointments(r.Context())
	if err != nil {
		if err == usecase.ErrUserNotInContext {
			response.Unauthorized(w, "")
			return
		}
		response.InternalServerError(w, "Failed to get appointments")
		return
	}

	response.Success(w, http.StatusOK, "Appointments retrieved successfully", appointments)
}

func (h *PatientAppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req dto.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.appointmentUsecase.BookAppointment(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrUserNotInContext:
			response.Unauthorized(w, "")
		case usecase.ErrScheduleNotFound:
			response.NotFound(w, "Schedule not found")
		case usecase.ErrSchedulePast:
			response.BadRequest(w, "Cannot book a past schedule")
		case usecase.ErrSlotNotOnGrid:
			response.BadRequest(w, "Start time does not match a slot of this schedule")
		case usecase.ErrSlotInPast:
			response.BadRequest(w, "Cannot book a slot that has already started")
		case usecase.ErrInvalidTimeFormat:
			response.BadRequest(w, "Invalid time format, use HH:MM")
		case usecase.ErrSlotTaken:
			response.Conflict(w, "This slot is already booked")
		case usecase.ErrAlreadyBooked:
			response.Conflict(w, "You already have an appointment in this specialization on that date")
		case service.ErrQuotaFull:
			response.Conflict(w, "Schedule is fully booked")
		default:
			response.InternalServerError(w, "Failed to book appointment")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Appointment booked successfully", appointment)
}

func (h *PatientAppointmentHandler) CancelMyAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid appointment ID")
		return
	}

	// Body is optional
	var req dto.CancelMyAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	if err := h.appointmentUsecase.CancelMyAppointment(r.Context(), appointmentID, req.Reason); err != nil {
		switch err {
		case usecase.ErrUserNotInContext:
			response.Unauthorized(w, "")
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		case usecase.ErrAppointmentNotOwned:
			response.Forbidden(w, "Appointment does not belong to you")
		case usecase.ErrAppointmentAlreadyCancelled:
			response.Conflict(w, "Appointment is already cancelled")
		case usecase.ErrAppointmentNotPending:
			response.Conflict(w, "Only scheduled appointments can be cancelled")
		default:
			response.InternalServerError(w, "Failed to cancel appointment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment cancelled successfully", nil)
}

func (h *PatientAppointmentHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(mux.Vars(r)["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		response.BadRequest(w, "Query parameter date is required")
		return
	}

	slots, err := h.appointmentUsecase.GetAvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		switch err {
		case usecase.ErrInvalidDate:
			response.BadRequest(w, "Invalid date format, use YYYY-MM-DD")
		case usecase.ErrDoctorNotFound:
			response.NotFound(w, "Doctor not found")
		default:
			response.InternalServerError(w, "Failed to get available slots")
		}
		return
	}

	response.Success(w, http.StatusOK, "Available slots retrieved successfully", slots)
}
