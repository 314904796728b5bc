package handler

import (
	"net/http"
	"strconv"

	"caqm-backend/internal/usecase"
	"caqm-backend/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	notificationUsecase usecase.NotificationUsecase
}

func NewNotificationHandler(notificationUsecase usecase.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{notificationUsecase: notificationUsecase}
}

func (h *NotificationHandler) GetMyNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "Query parameter unread must be true or false")
			return
		}
		unreadOnly = parsed
	}

	notifications, err := h.notificationUsecase.GetMyNotifications(r.Context(), unreadOnly)
	if err != nil {
		if err == usecase.ErrUserNotInContext {
			response.Unauthorized(w, "")
			return
		}
		response.InternalServerError(w, "Failed to get notifications")
		return
	}

	response.Success(w, http.StatusOK, "Notifications retrieved successfully", notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	notification, err := h.notificationUsecase.MarkRead(r.Context(), notificationID)
	if err != nil {
		switch err {
		case usecase.ErrUserNotInContext:
			response.Unauthorized(w, "")
		case usecase.ErrNotificationNotFound:
			response.NotFound(w, "Notification not found")
		default:
			response.InternalServerError(w, "Failed to mark notification as read")
		}
		return
	}

	response.Success(w, http.StatusOK, "Notification marked as read", notification)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	result, err := h.notificationUsecase.MarkAllRead(r.Context())
	if err != nil {
		if err == usecase.ErrUserNotInContext {
			response.Unauthorized(w, "")
			return
		}
		response.InternalServerError(w, "Failed to mark notifications as read")
		return
	}

	response.Success(w, http.StatusOK, "Notifications marked as read", result)
}
