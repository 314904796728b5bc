package http

import (
	"net/http"

	"caqm-backend/internal/delivery/http/handler"
	"caqm-backend/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router                    *mux.Router
	doctorHandler             *handler.DoctorHandler
	cancellationHandler       *handler.CancellationHandler
	adminAppointmentHandler   *handler.AdminAppointmentHandler
	patientAppointmentHandler *handler.PatientAppointmentHandler
	notificationHandler       *handler.NotificationHandler
	doctorScheduleHandler     *handler.DoctorScheduleHandler
	auditLogHandler           *handler.AuditLogHandler
	authMiddleware            *middleware.AuthMiddleware
	corsMiddleware            *middleware.CORSMiddleware
}

func NewRouter(
	doctorHandler *handler.DoctorHandler,
	cancellationHandler *handler.CancellationHandler,
	adminAppointmentHandler *handler.AdminAppointmentHandler,
	patientAppointmentHandler *handler.PatientAppointmentHandler,
	notificationHandler *handler.NotificationHandler,
	doctorScheduleHandler *handler.DoctorScheduleHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:                    mux.NewRouter(),
		doctorHandler:             doctorHandler,
		cancellationHandler:       cancellationHandler,
		adminAppointmentHandler:   adminAppointmentHandler,
		patientAppointmentHandler: patientAppointmentHandler,
		notificationHandler:       notificationHandler,
		doctorScheduleHandler:     doctorScheduleHandler,
		auditLogHandler:           auditLogHandler,
		authMiddleware:            authMiddleware,
		corsMiddleware:            corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Doctor directory and slot lookup (any authenticated user)
	doctors := api.PathPrefix("/doctors").Subrouter()
	doctors.Use(r.authMiddleware.Authenticate)
	doctors.HandleFunc("", r.doctorHandler.GetAllDoctors).Methods(http.MethodGet)
	doctors.HandleFunc("/{doctorId}", r.doctorHandler.GetDoctor).Methods(http.MethodGet)
	doctors.HandleFunc("/{doctorId}/slots", r.patientAppointmentHandler.GetAvailableSlots).Methods(http.MethodGet)

	// Patient routes
	patient := api.PathPrefix("/patient").Subrouter()
	patient.Use(r.authMiddleware.Authenticate)
	patient.Use(middleware.RequirePatient)

	patient.HandleFunc("/appointments", r.patientAppointmentHandler.GetMyAppointments).Methods(http.MethodGet)
	patient.HandleFunc("/appointments", r.patientAppointmentHandler.BookAppointment).Methods(http.MethodPost)
	patient.HandleFunc("/appointments/{id}/cancel", r.patientAppointmentHandler.CancelMyAppointment).Methods(http.MethodPost)

	patient.HandleFunc("/notifications", r.notificationHandler.GetMyNotifications).Methods(http.MethodGet)
	patient.HandleFunc("/notifications/read-all", r.notificationHandler.MarkAllRead).Methods(http.MethodPost)
	patient.HandleFunc("/notifications/{id}/read", r.notificationHandler.MarkRead).Methods(http.MethodPost)

	// Doctor routes
	doctor := api.PathPrefix("/doctor").Subrouter()
	doctor.Use(r.authMiddleware.Authenticate)
	doctor.Use(middleware.RequireDoctor)

	doctor.HandleFunc("/appointments/{id}/status", r.adminAppointmentHandler.UpdateStatus).Methods(http.MethodPatch)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)

	// Appointments (admin)
	admin.HandleFunc("/appointments", r.adminAppointmentHandler.GetAppointments).Methods(http.MethodGet)
	admin.HandleFunc("/appointments/{id}/status", r.adminAppointmentHandler.UpdateStatus).Methods(http.MethodPatch)

	// Cancellation (admin)
	admin.HandleFunc("/appointments/{id}/cancel", r.cancellationHandler.CancelAppointment).Methods(http.MethodPost)
	admin.HandleFunc("/appointments/{id}/recommendations", r.cancellationHandler.PreviewRecommendations).Methods(http.MethodGet)
	admin.HandleFunc("/doctors/{doctorId}/appointments/cancel", r.cancellationHandler.CancelDoctorAppointments).Methods(http.MethodPost)

	// Schedule management (admin)
	admin.HandleFunc("/schedules", r.doctorScheduleHandler.CreateSchedule).Methods(http.MethodPost)
	admin.HandleFunc("/schedules", r.doctorScheduleHandler.GetAllSchedules).Methods(http.MethodGet)
	admin.HandleFunc("/schedules/{id}", r.doctorScheduleHandler.GetSchedule).Methods(http.MethodGet)
	admin.HandleFunc("/schedules/{id}", r.doctorScheduleHandler.UpdateSchedule).Methods(http.MethodPut)
	admin.HandleFunc("/schedules/{id}", r.doctorScheduleHandler.DeleteSchedule).Methods(http.MethodDelete)
	admin.HandleFunc("/doctors/{doctorId}/schedules", r.doctorScheduleHandler.GetSchedulesByDoctor).Methods(http.MethodGet)

	// Audit trail (admin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
