package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"caqm-backend/internal/delivery/dto"
	"caqm-backend/internal/delivery/http/middleware"
	"caqm-backend/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newAdminAppointmentFixture(t *testing.T) (*adminAppointmentUsecase, *fakeAppointmentRepo, *fakeAuditService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	appointments := &fakeAppointmentRepo{raced: map[uuid.UUID]bool{}}
	audit := &fakeAuditService{}

	uc := NewAdminAppointmentUsecase(db, quietLogger(), appointments, audit, time.UTC).(*adminAppointmentUsecase)
	uc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 40, 0, 0, time.UTC) }
	return uc, appointments, audit, mock
}

func TestUpdateAppointmentStatus(t *testing.T) {
	cases := []struct {
		name    string
		status  entity.AppointmentStatus
		day     int
		start   string
		role    int
		owner   bool
		raced   bool
		next    entity.AppointmentStatus
		wantErr error
	}{
		{"check in today", entity.AppointmentStatusScheduled, 2, "10:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCheckedIn, nil},
		{"complete after check-in", entity.AppointmentStatusCheckedIn, 2, "09:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCompleted, nil},
		{"no show once started", entity.AppointmentStatusScheduled, 2, "09:30:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusNoShow, nil},
		{"own doctor completes", entity.AppointmentStatusScheduled, 2, "09:00:00", entity.RoleIDDoctor, true, false, entity.AppointmentStatusCompleted, nil},
		{"other doctor", entity.AppointmentStatusScheduled, 2, "09:00:00", entity.RoleIDDoctor, false, false, entity.AppointmentStatusCompleted, ErrAppointmentNotOwned},
		{"check in another day", entity.AppointmentStatusScheduled, 3, "09:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCheckedIn, ErrCheckInNotToday},
		{"complete before start", entity.AppointmentStatusScheduled, 2, "10:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCompleted, ErrAppointmentNotStarted},
		{"no show next day", entity.AppointmentStatusScheduled, 3, "08:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusNoShow, ErrAppointmentNotStarted},
		{"cancelled", entity.AppointmentStatusCancelled, 2, "09:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCheckedIn, ErrInvalidStatusTransition},
		{"completed to no show", entity.AppointmentStatusCompleted, 2, "09:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusNoShow, ErrInvalidStatusTransition},
		{"check in twice", entity.AppointmentStatusCheckedIn, 2, "09:00:00", entity.RoleIDAdmin, false, false, entity.AppointmentStatusCheckedIn, ErrInvalidStatusTransition},
		{"changed concurrently", entity.AppointmentStatusScheduled, 2, "09:00:00", entity.RoleIDAdmin, false, true, entity.AppointmentStatusCompleted, ErrInvalidStatusTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc, appointments, audit, mock := newAdminAppointmentFixture(t)
			actorID := uuid.New()

			doctorID := uuid.New()
			if tc.owner {
				doctorID = actorID
			}
			appointment := appointments.add(entity.Appointment{
				PatientID:       uuid.New(),
				DoctorID:        doctorID,
				ScheduleID:      4,
				AppointmentDate: time.Date(2026, 3, tc.day, 0, 0, 0, 0, time.UTC),
				StartTime:       tc.start,
				EndTime:         tc.start,
				Status:          tc.status,
			})
			appointments.raced[appointment.ID] = tc.raced

			mock.ExpectBegin()
			if tc.wantErr == nil {
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			ctx := middleware.ContextWithUser(context.Background(), actorID, tc.role)
			resp, err := uc.UpdateStatus(ctx, appointment.ID, &dto.UpdateAppointmentStatusRequest{Status: string(tc.next)})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			expectationsMet(t, mock)

			if tc.wantErr != nil {
				if got := appointments.statusOf(appointment.ID); got != tc.status {
					t.Fatalf("expected status to stay %s, got %s", tc.status, got)
				}
				if len(audit.entries) != 0 {
					t.Fatalf("expected no audit entry, got %+v", audit.entries)
				}
				return
			}

			if resp.Status != string(tc.next) || appointments.statusOf(appointment.ID) != tc.next {
				t.Fatalf("expected status %s, got response %s and stored %s", tc.next, resp.Status, appointments.statusOf(appointment.ID))
			}
			if len(audit.entries) != 1 || audit.entries[0].Action != entity.AuditActionAppointmentStatus || *audit.entries[0].ActorID != actorID {
				t.Fatalf("unexpected audit entries: %+v", audit.entries)
			}
		})
	}
}

func TestUpdateAppointmentStatus_NotFound(t *testing.T) {
	uc, _, _, mock := newAdminAppointmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := middleware.ContextWithUser(context.Background(), uuid.New(), entity.RoleIDAdmin)
	_, err := uc.UpdateStatus(ctx, uuid.New(), &dto.UpdateAppointmentStatusRequest{Status: "completed"})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateAppointmentStatus_RequiresUserInContext(t *testing.T) {
	u := &adminAppointmentUsecase{}

	_, err := u.UpdateStatus(context.Background(), uuid.New(), &dto.UpdateAppointmentStatusRequest{Status: "completed"})
	if !errors.Is(err, ErrUserNotInContext) {
		t.Fatalf("expected ErrUserNotInContext, got %v", err)
	}
}

func TestGetAppointments_Filters(t *testing.T) {
	uc, appointments, _, _ := newAdminAppointmentFixture(t)
	doctorID := uuid.New()
	for day, status := range map[int]entity.AppointmentStatus{
		1: entity.AppointmentStatusCompleted,
		2: entity.AppointmentStatusScheduled,
		3: entity.AppointmentStatusNoShow,
		9: entity.AppointmentStatusScheduled,
	} {
		appointments.add(entity.Appointment{
			PatientID:       uuid.New(),
			DoctorID:        doctorID,
			AppointmentDate: time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			StartTime:       "09:00:00",
			EndTime:         "09:30:00",
			Status:          status,
		})
	}
	appointments.add(entity.Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		AppointmentDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00:00",
		EndTime:         "09:30:00",
		Status:          entity.AppointmentStatusScheduled,
	})

	cases := []struct {
		name string
		req  dto.AppointmentFilterRequest
		want int
	}{
		{"all", dto.AppointmentFilterRequest{}, 5},
		{"doctor", dto.AppointmentFilterRequest{DoctorID: doctorID.String()}, 4},
		{"inclusive range", dto.AppointmentFilterRequest{DateFrom: "2026-03-02", DateTo: "2026-03-03"}, 3},
		{"status", dto.AppointmentFilterRequest{Status: "no_show"}, 1},
		{"doctor and status", dto.AppointmentFilterRequest{DoctorID: doctorID.String(), Status: "scheduled"}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := uc.GetAppointments(context.Background(), &tc.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Total != tc.want || len(resp.Appointments) != tc.want {
				t.Fatalf("expected %d appointments, got %d", tc.want, resp.Total)
			}
		})
	}
}

func TestAppointmentFilterFrom(t *testing.T) {
	cases := []struct {
		name string
		req  dto.AppointmentFilterRequest
		want error
	}{
		{"empty", dto.AppointmentFilterRequest{}, nil},
		{"same day", dto.AppointmentFilterRequest{DateFrom: "2026-03-02", DateTo: "2026-03-02"}, nil},
		{"inverted", dto.AppointmentFilterRequest{DateFrom: "2026-03-03", DateTo: "2026-03-02"}, ErrInvalidDateRange},
		{"bad date", dto.AppointmentFilterRequest{DateTo: "03-02-2026"}, ErrInvalidDate},
		{"bad doctor", dto.AppointmentFilterRequest{DoctorID: "42"}, ErrInvalidDoctorID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := appointmentFilterFrom(&tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	filter, err := appointmentFilterFrom(&dto.AppointmentFilterRequest{DateFrom: "2026-03-01", Status: "completed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.From == nil || !filter.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || filter.To != nil {
		t.Fatalf("unexpected range: %+v", filter)
	}
	if filter.Status != entity.AppointmentStatusCompleted || filter.DoctorID != nil {
		t.Fatalf("unexpected filter: %+v", filter)
	}
}
