package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"caqm-backend/config"
	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/delivery/http/middleware"
	"caqm-backend/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

type cancellationFixture struct {
	uc            *cancellationUsecase
	mock          sqlmock.Sqlmock
	ctx           context.Context
	doctor        entity.DoctorProfile
	appointments  *fakeAppointmentRepo
	notifications *fakeNotificationRepo
	recommender   *fakeRecommender
	audit         *fakeAuditService
	quota         *fakeQuotaService
	dispatcher    *fakeDispatcher
	publisher     *fakePublisher
}

func newCancellationFixture(t *testing.T) *cancellationFixture {
	t.Helper()
	db, mock := newMockDB(t)

	doctors := &fakeDoctorRepo{}
	f := &cancellationFixture{
		mock:          mock,
		ctx:           middleware.ContextWithUser(context.Background(), uuid.New(), entity.RoleIDAdmin),
		doctor:        doctors.add("Jane Doe", "CARDIOLOGY"),
		appointments:  &fakeAppointmentRepo{raced: map[uuid.UUID]bool{}},
		notifications: &fakeNotificationRepo{},
		recommender:   &fakeRecommender{byAppointment: map[uuid.UUID]entity.RecommendationList{}},
		audit:         &fakeAuditService{},
		quota:         &fakeQuotaService{},
		dispatcher:    &fakeDispatcher{},
		publisher:     &fakePublisher{},
	}

	uc := NewCancellationUsecase(db, quietLogger(), f.appointments, doctors, f.notifications,
		f.recommender, f.audit, f.quota, f.dispatcher, f.publisher,
		config.RecommendationConfig{WindowDays: 14, MaxCandidates: 5}, time.UTC)
	f.uc = uc.(*cancellationUsecase)
	f.uc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

// book stores a scheduled appointment with the fixture doctor for a new patient.
func (f *cancellationFixture) book(patientName string, day int, start string) entity.Appointment {
	patientID := uuid.New()
	return f.appointments.add(entity.Appointment{
		PatientID:       patientID,
		DoctorID:        f.doctor.UserID,
		ScheduleID:      day,
		AppointmentDate: time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		StartTime:       start,
		EndTime:         start,
		Status:          entity.AppointmentStatusScheduled,
		Doctor:          f.doctor,
		Patient: entity.PatientProfile{
			UserID:      patientID,
			PhoneNumber: "+15550100",
			User:        entity.User{ID: patientID, FullName: patientName, Email: strings.ToLower(patientName) + "@clinic.test"},
		},
	})
}

func (f *cancellationFixture) assertNoSideEffects(t *testing.T) {
	t.Helper()
	if len(f.dispatcher.dispatched) != 0 {
		t.Fatalf("expected no delivery, got %d", len(f.dispatcher.dispatched))
	}
	if len(f.quota.released) != 0 {
		t.Fatalf("expected no quota release, got %v", f.quota.released)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(f.publisher.events))
	}
}

func TestCancelAppointment_NotifiesWithoutAlternatives(t *testing.T) {
	f := newCancellationFixture(t)
	appointment := f.book("Pat", 2, "09:00:00")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.CancelAppointment(f.ctx, appointment.ID, &dto.CancelAppointmentRequest{Reason: "Doctor is ill"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, f.mock)

	if len(f.notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifications.created))
	}
	notification := f.notifications.created[0]
	if notification.UserID != appointment.PatientID || notification.Type != entity.NotificationTypeAppointmentCancelled {
		t.Fatalf("unexpected notification: %+v", notification)
	}
	if len(notification.Recommendations) != 0 {
		t.Fatalf("expected empty recommendations, got %v", notification.Recommendations)
	}
	if !strings.Contains(notification.Message, "No alternative appointments are available in the next 14 days") {
		t.Fatalf("expected no-alternatives note, got %q", notification.Message)
	}

	if got := f.appointments.statusOf(appointment.ID); got != entity.AppointmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
	if resp.Total != 1 || resp.Cancelled[0].NotificationID != notification.ID {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != entity.AuditActionAppointmentCancel {
		t.Fatalf("unexpected audit entries: %+v", f.audit.entries)
	}
	if len(f.quota.released) != 1 || f.quota.released[0] != appointment.ScheduleID {
		t.Fatalf("expected quota release for schedule %d, got %v", appointment.ScheduleID, f.quota.released)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Bulk {
		t.Fatalf("expected one single-cancel event, got %+v", f.publisher.events)
	}
	if len(f.dispatcher.dispatched) != 1 || f.dispatcher.recipients[0].Email != "pat@clinic.test" {
		t.Fatalf("expected delivery to the patient, got %+v", f.dispatcher.recipients)
	}
}

func TestCancelAppointment_CarriesAlternatives(t *testing.T) {
	f := newCancellationFixture(t)
	appointment := f.book("Pat", 2, "09:00:00")
	f.recommender.byAppointment[appointment.ID] = entity.RecommendationList{{
		Kind:       entity.RecommendationSameDoctor,
		DoctorID:   f.doctor.UserID,
		DoctorName: f.doctor.DisplayName(),
		ScheduleID: 3,
		Date:       "2026-03-03",
		StartTime:  "10:00",
		EndTime:    "10:30",
	}}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.CancelAppointment(f.ctx, appointment.ID, &dto.CancelAppointmentRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, f.mock)

	notification := f.notifications.created[0]
	if len(notification.Recommendations) != 1 || strings.Contains(notification.Message, "No alternative") {
		t.Fatalf("unexpected notification: %+v", notification)
	}
	if len(resp.Cancelled[0].Recommendations) != 1 {
		t.Fatalf("expected alternatives in response, got %+v", resp.Cancelled[0])
	}
}

func TestCancelAppointment_RollsBackWhenNotificationFails(t *testing.T) {
	f := newCancellationFixture(t)
	appointment := f.book("Pat", 2, "09:00:00")
	f.notifications.createErr = errStorage

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.uc.CancelAppointment(f.ctx, appointment.ID, &dto.CancelAppointmentRequest{Reason: "x"})
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	expectationsMet(t, f.mock)

	if len(f.audit.entries) != 0 {
		t.Fatalf("expected no audit entry, got %+v", f.audit.entries)
	}
	f.assertNoSideEffects(t)
}

func TestCancelAppointment_ConcurrentCancel(t *testing.T) {
	f := newCancellationFixture(t)
	appointment := f.book("Pat", 2, "09:00:00")
	f.appointments.raced[appointment.ID] = true

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.uc.CancelAppointment(f.ctx, appointment.ID, &dto.CancelAppointmentRequest{Reason: "x"})
	if !errors.Is(err, ErrAppointmentAlreadyCancelled) {
		t.Fatalf("expected ErrAppointmentAlreadyCancelled, got %v", err)
	}
	expectationsMet(t, f.mock)

	if len(f.recommender.requests) != 0 || len(f.notifications.created) != 0 {
		t.Fatalf("expected nothing computed after losing the race")
	}
	f.assertNoSideEffects(t)
}

func TestCancelAppointment_NotFound(t *testing.T) {
	f := newCancellationFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	if _, err := f.uc.CancelAppointment(f.ctx, uuid.New(), &dto.CancelAppointmentRequest{}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	expectationsMet(t, f.mock)
}

func TestCancelDoctorAppointments_NotifiesEachPatient(t *testing.T) {
	f := newCancellationFixture(t)
	first := f.book("Ann", 2, "09:00:00")
	second := f.book("Ben", 2, "09:30:00")
	third := f.book("Cid", 3, "10:00:00")
	done := f.book("Dee", 2, "08:00:00")
	f.appointments.appointments[3].Status = entity.AppointmentStatusCompleted

	other := f.appointments.add(entity.Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		ScheduleID:      9,
		AppointmentDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00:00",
		Status:          entity.AppointmentStatusScheduled,
	})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.CancelDoctorAppointments(f.ctx, f.doctor.UserID, &dto.CancelDoctorAppointmentsRequest{Reason: "Leave"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, f.mock)

	if resp.Total != 3 || len(f.notifications.created) != 3 {
		t.Fatalf("expected 3 cancellations and notifications, got %d and %d", resp.Total, len(f.notifications.created))
	}
	notified := map[uuid.UUID]int{}
	for _, n := range f.notifications.created {
		if n.Type != entity.NotificationTypeBulkCancellation {
			t.Fatalf("expected bulk notification, got %s", n.Type)
		}
		if n.Title != "Appointment with Dr. Jane Doe Cancelled" {
			t.Fatalf("unexpected title %q", n.Title)
		}
		notified[n.UserID]++
	}
	for _, a := range []entity.Appointment{first, second, third} {
		if notified[a.PatientID] != 1 {
			t.Fatalf("expected one notification for patient %s, got %d", a.Patient.User.FullName, notified[a.PatientID])
		}
		if got := f.appointments.statusOf(a.ID); got != entity.AppointmentStatusCancelled {
			t.Fatalf("expected %s cancelled, got %s", a.Patient.User.FullName, got)
		}
	}
	if got := f.appointments.statusOf(done.ID); got != entity.AppointmentStatusCompleted {
		t.Fatalf("expected completed visit untouched, got %s", got)
	}
	if got := f.appointments.statusOf(other.ID); got != entity.AppointmentStatusScheduled {
		t.Fatalf("expected other doctor untouched, got %s", got)
	}

	if len(f.recommender.requests) != 3 {
		t.Fatalf("expected 3 recommendation requests, got %d", len(f.recommender.requests))
	}
	for _, req := range f.recommender.requests {
		if req.Exclusions == nil || !req.Exclusions.ExcludesDay(f.doctor.UserID, third.AppointmentDate) ||
			!req.Exclusions.ExcludesDay(f.doctor.UserID, first.AppointmentDate) {
			t.Fatalf("expected every cancelled day excluded for each patient")
		}
	}

	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != entity.AuditActionAppointmentBulkCancel {
		t.Fatalf("expected one bulk audit entry, got %+v", f.audit.entries)
	}
	if len(f.dispatcher.dispatched) != 3 || len(f.quota.released) != 3 || len(f.publisher.events) != 3 {
		t.Fatalf("expected side effects per patient, got %d deliveries, %d releases, %d events",
			len(f.dispatcher.dispatched), len(f.quota.released), len(f.publisher.events))
	}
	for _, e := range f.publisher.events {
		if !e.Bulk {
			t.Fatalf("expected bulk event, got %+v", e)
		}
	}
}

func TestCancelDoctorAppointments_RollsBackWhenNotificationFails(t *testing.T) {
	f := newCancellationFixture(t)
	f.book("Ann", 2, "09:00:00")
	f.book("Ben", 2, "09:30:00")
	f.notifications.createErr = errStorage

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	if _, err := f.uc.CancelDoctorAppointments(f.ctx, f.doctor.UserID, &dto.CancelDoctorAppointmentsRequest{}); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	expectationsMet(t, f.mock)

	if len(f.audit.entries) != 0 {
		t.Fatalf("expected no audit entry, got %+v", f.audit.entries)
	}
	f.assertNoSideEffects(t)
}

func TestCancelDoctorAppointments_SkipsConcurrentlyCancelled(t *testing.T) {
	f := newCancellationFixture(t)
	kept := f.book("Ann", 2, "09:00:00")
	raced := f.book("Ben", 2, "09:30:00")
	f.appointments.raced[raced.ID] = true

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.CancelDoctorAppointments(f.ctx, f.doctor.UserID, &dto.CancelDoctorAppointmentsRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, f.mock)

	if resp.Total != 1 || resp.Cancelled[0].AppointmentID != kept.ID {
		t.Fatalf("expected only %s cancelled, got %+v", kept.ID, resp.Cancelled)
	}
	if len(f.notifications.created) != 1 || f.notifications.created[0].UserID != kept.PatientID {
		t.Fatalf("expected one notification for the remaining patient, got %+v", f.notifications.created)
	}
}

func TestCancelDoctorAppointments_AllConcurrentlyCancelled(t *testing.T) {
	f := newCancellationFixture(t)
	raced := f.book("Ann", 2, "09:00:00")
	f.appointments.raced[raced.ID] = true

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	if _, err := f.uc.CancelDoctorAppointments(f.ctx, f.doctor.UserID, &dto.CancelDoctorAppointmentsRequest{}); !errors.Is(err, ErrNoActiveAppointments) {
		t.Fatalf("expected ErrNoActiveAppointments, got %v", err)
	}
	expectationsMet(t, f.mock)
	f.assertNoSideEffects(t)
}

func TestCancelDoctorAppointments_UnknownDoctor(t *testing.T) {
	f := newCancellationFixture(t)

	if _, err := f.uc.CancelDoctorAppointments(f.ctx, uuid.New(), &dto.CancelDoctorAppointmentsRequest{}); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	expectationsMet(t, f.mock)
}

func TestCancelAppointment_ApplyToAllCancelsDoctorDay(t *testing.T) {
	f := newCancellationFixture(t)
	source := f.book("Ann", 2, "09:00:00")
	sameDay := f.book("Ben", 2, "09:30:00")
	nextDay := f.book("Cid", 3, "10:00:00")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.CancelAppointment(f.ctx, source.ID, &dto.CancelAppointmentRequest{
		Reason:     "Clinic closed",
		ApplyToAll: true,
		Date:       "2026-03-02",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, f.mock)

	if resp.Total != 2 {
		t.Fatalf("expected 2 cancellations, got %d", resp.Total)
	}
	for _, a := range []entity.Appointment{source, sameDay} {
		if got := f.appointments.statusOf(a.ID); got != entity.AppointmentStatusCancelled {
			t.Fatalf("expected %s cancelled, got %s", a.Patient.User.FullName, got)
		}
	}
	if got := f.appointments.statusOf(nextDay.ID); got != entity.AppointmentStatusScheduled {
		t.Fatalf("expected next day untouched, got %s", got)
	}
	for _, n := range f.notifications.created {
		if n.Type != entity.NotificationTypeBulkCancellation {
			t.Fatalf("expected bulk notification, got %s", n.Type)
		}
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != entity.AuditActionAppointmentBulkCancel {
		t.Fatalf("expected one bulk audit entry, got %+v", f.audit.entries)
	}
}

func TestCancelAppointment_ApplyToAllUnknownAppointment(t *testing.T) {
	f := newCancellationFixture(t)

	_, err := f.uc.CancelAppointment(f.ctx, uuid.New(), &dto.CancelAppointmentRequest{ApplyToAll: true})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	expectationsMet(t, f.mock)
}
