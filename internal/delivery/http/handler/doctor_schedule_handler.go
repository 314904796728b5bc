package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/usecase"
	"caqm-backend/pkg/response"
	"caqm-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type DoctorScheduleHandler struct {
	scheduleUsecase usecase.DoctorScheduleUsecase
	validator       *validator.CustomValidator
}

func NewDoctorScheduleHandler(scheduleUsecase usecase.DoctorScheduleUsecase, validator *validator.CustomValidator) *DoctorScheduleHandler {
	return &DoctorScheduleHandler{
		scheduleUsecase: scheduleUsecase,
		validator:       validator,
	}
}

func (h *DoctorScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	schedule, err := h.scheduleUsecase.CreateSchedule(r.Context(), &req)
	if err != nil {
		writeScheduleError(w, err, "Failed to create schedule")
		return
	}

	response.Success(w, http.StatusCreated, "Schedule created successfully", schedule)
}

func (h *DoctorScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := scheduleIDFrom(w, r)
	if !ok {
		return
	}

	schedule, err := h.scheduleUsecase.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		writeScheduleError(w, err, "Failed to get schedule")
		return
	}

	response.Success(w, http.StatusOK, "Schedule retrieved successfully", schedule)
}

func (h *DoctorScheduleHandler) GetAllSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.scheduleUsecase.GetAllSchedules(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to get schedules")
		return
	}

	response.Success(w, http.StatusOK, "Schedules retrieved successfully", schedules)
}

func (h *DoctorScheduleHandler) GetSchedulesByDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(mux.Vars(r)["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	schedules, err := h.scheduleUsecase.GetSchedulesByDoctor(r.Context(), doctorID)
	if err != nil {
		response.InternalServerError(w, "Failed to get schedules")
		return
	}

	response.Success(w, http.StatusOK, "Schedules retrieved successfully", schedules)
}

func (h *DoctorScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := scheduleIDFrom(w, r)
	if !ok {
		return
	}

	var req dto.UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	schedule, err := h.scheduleUsecase.UpdateSchedule(r.Context(), scheduleID, &req)
	if err != nil {
		writeScheduleError(w, err, "Failed to update schedule")
		return
	}

	response.Success(w, http.StatusOK, "Schedule updated successfully", schedule)
}

func (h *DoctorScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := scheduleIDFrom(w, r)
	if !ok {
		return
	}

	if err := h.scheduleUsecase.DeleteSchedule(r.Context(), scheduleID); err != nil {
		writeScheduleError(w, err, "Failed to delete schedule")
		return
	}

	response.Success(w, http.StatusOK, "Schedule deleted successfully", nil)
}

func scheduleIDFrom(w http.ResponseWriter, r *http.Request) (int, bool) {
	scheduleID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || scheduleID <= 0 {
		response.BadRequest(w, "Invalid schedule ID")
		return 0, false
	}
	return scheduleID, true
}

func writeScheduleError(w http.ResponseWriter, err error, fallback string) {
	switch err {
	case usecase.ErrScheduleNotFound:
		response.NotFound(w, "Schedule not found")
	case usecase.ErrDoctorNotFound:
		response.NotFound(w, "Doctor not found")
	case usecase.ErrInvalidScheduleDate:
		response.BadRequest(w, "Invalid schedule date format, use YYYY-MM-DD")
	case usecase.ErrInvalidTimeFormat:
		response.BadRequest(w, "Invalid time format, use HH:MM")
	case usecase.ErrInvalidScheduleWindow:
		response.BadRequest(w, "End time must be after start time and fit at least one slot")
	case usecase.ErrScheduleHasAppointments:
		response.Conflict(w, "Schedule has active appointments")
	case usecase.ErrQuotaBelowBooked:
		response.Conflict(w, "Total quota cannot be lower than the number of active appointments")
	default:
		response.InternalServerError(w, fallback)
	}
}
