package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errStorage = errors.New("storage unavailable")

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newMockDB returns a gorm handle whose transactions are observed by sqlmock.
// Repositories are faked, so BEGIN, COMMIT and ROLLBACK are the only statements.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("transaction expectations: %v", err)
	}
}

type fakeAppointmentRepo struct {
	appointments []entity.Appointment
	// raced appointments report 0 affected rows, as if cancelled concurrently
	raced map[uuid.UUID]bool
}

func (f *fakeAppointmentRepo) add(a entity.Appointment) entity.Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.appointments = append(f.appointments, a)
	return a
}

func (f *fakeAppointmentRepo) statusOf(id uuid.UUID) entity.AppointmentStatus {
	for _, a := range f.appointments {
		if a.ID == id {
			return a.Status
		}
	}
	return ""
}

func (f *fakeAppointmentRepo) Create(db *gorm.DB, appointment *entity.Appointment) error {
	f.add(*appointment)
	return nil
}

func (f *fakeAppointmentRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	for i := range f.appointments {
		if f.appointments[i].ID == id {
			a := f.appointments[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	return f.FindByID(db, id)
}

func (f *fakeAppointmentRepo) FindByPatientID(db *gorm.DB, patientID uuid.UUID) ([]entity.Appointment, error) {
	var out []entity.Appointment
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, error) {
	var out []entity.Appointment
	for _, a := range f.appointments {
		d := availability.DateOnly(a.AppointmentDate)
		switch {
		case filter.DoctorID != nil && a.DoctorID != *filter.DoctorID:
		case filter.From != nil && d.Before(*filter.From):
		case filter.To != nil && d.After(*filter.To):
		case filter.Status != "" && a.Status != filter.Status:
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID, from time.Time, on *time.Time) ([]entity.Appointment, error) {
	var out []entity.Appointment
	for _, a := range f.appointments {
		d := availability.DateOnly(a.AppointmentDate)
		if a.DoctorID != doctorID || !a.IsActive() || d.Before(from) {
			continue
		}
		if on != nil && !d.Equal(availability.DateOnly(*on)) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindBookedByDoctorsBetween(db *gorm.DB, doctorIDs []uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ExistsActiveForPatientOnDate(db *gorm.DB, patientID uuid.UUID, specialization string, date time.Time) (bool, error) {
	return false, nil
}

func (f *fakeAppointmentRepo) CountBookedBySchedule(db *gorm.DB, scheduleID int) (int64, error) {
	return 0, nil
}

func (f *fakeAppointmentRepo) MaxQueueNumber(db *gorm.DB, scheduleID int) (int, error) {
	return 0, nil
}

func (f *fakeAppointmentRepo) Cancel(db *gorm.DB, id uuid.UUID, reason string, at time.Time) (int64, error) {
	if f.raced[id] {
		return 0, nil
	}
	for i := range f.appointments {
		if f.appointments[i].ID == id && f.appointments[i].IsActive() {
			f.appointments[i].Status = entity.AppointmentStatusCancelled
			f.appointments[i].CancelReason = reason
			f.appointments[i].CancelledAt = &at
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error) {
	if f.raced[id] {
		return 0, nil
	}
	for i := range f.appointments {
		if f.appointments[i].ID == id && f.appointments[i].Status == from {
			f.appointments[i].Status = to
			return 1, nil
		}
	}
	return 0, nil
}

type fakeDoctorRepo struct {
	doctors []entity.DoctorProfile
}

func (f *fakeDoctorRepo) add(name, specialization string) entity.DoctorProfile {
	id := uuid.New()
	d := entity.DoctorProfile{
		UserID:         id,
		Specialization: specialization,
		User:           entity.User{ID: id, FullName: name},
	}
	f.doctors = append(f.doctors, d)
	return d
}

func (f *fakeDoctorRepo) FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.DoctorProfile, error) {
	for i := range f.doctors {
		if f.doctors[i].UserID == userID {
			d := f.doctors[i]
			return &d, nil
		}
	}
	return nil, nil
}

func (f *fakeDoctorRepo) FindActive(db *gorm.DB, specialization string) ([]entity.DoctorProfile, error) {
	return f.doctors, nil
}

func (f *fakeDoctorRepo) FindActiveBySpecialization(db *gorm.DB, specialization string, excludeID uuid.UUID) ([]entity.DoctorProfile, error) {
	return nil, nil
}

type fakeNotificationRepo struct {
	created   []entity.Notification
	createErr error
}

func (f *fakeNotificationRepo) Create(db *gorm.DB, notification *entity.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeNotificationRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) FindByUserID(db *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) CountUnread(db *gorm.DB, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) MarkRead(db *gorm.DB, id uuid.UUID, userID uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) MarkAllRead(db *gorm.DB, userID uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) UpdateDelivery(db *gorm.DB, id uuid.UUID, result entity.DeliveryResult) error {
	return nil
}

// fakeRecommender returns the alternatives configured per appointment, none otherwise.
type fakeRecommender struct {
	byAppointment map[uuid.UUID]entity.RecommendationList
	requests      []service.RecommendationRequest
}

func (f *fakeRecommender) Recommend(ctx context.Context, db *gorm.DB, req service.RecommendationRequest) (entity.RecommendationList, error) {
	f.requests = append(f.requests, req)
	if list, ok := f.byAppointment[req.Appointment.ID]; ok {
		return list, nil
	}
	return entity.RecommendationList{}, nil
}

func (f *fakeRecommender) FreeSlots(ctx context.Context, db *gorm.DB, doctor *entity.DoctorProfile, date time.Time) (entity.RecommendationList, error) {
	return entity.RecommendationList{}, nil
}

type fakeAuditService struct {
	entries []service.AuditEntry
}

func (f *fakeAuditService) Record(ctx context.Context, tx *gorm.DB, entry service.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeQuotaService struct {
	released []int
}

func (f *fakeQuotaService) Reserve(ctx context.Context, scheduleID int) (int, error) { return 1, nil }

func (f *fakeQuotaService) Release(ctx context.Context, scheduleID int) error {
	f.released = append(f.released, scheduleID)
	return nil
}

func (f *fakeQuotaService) SyncSchedule(ctx context.Context, schedule *entity.DoctorSchedule) error {
	return nil
}

func (f *fakeQuotaService) AdjustQuota(ctx context.Context, scheduleID int, delta int, scheduleDate time.Time) error {
	return nil
}

func (f *fakeQuotaService) DeleteSchedule(ctx context.Context, scheduleID int) error { return nil }

func (f *fakeQuotaService) SyncOnStartup(ctx context.Context) error { return nil }

func (f *fakeQuotaService) Stop() {}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []entity.Notification
	recipients []service.Recipient
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, notification *entity.Notification, recipient service.Recipient) entity.DeliveryResult {
	return entity.DeliveryResult{Status: entity.DeliveryStatusSent}
}

func (f *fakeDispatcher) DispatchAsync(notification entity.Notification, recipient service.Recipient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, notification)
	f.recipients = append(f.recipients, recipient)
}

func (f *fakeDispatcher) Wait() {}

type fakePublisher struct {
	events []entity.AppointmentCancelledEvent
}

func (f *fakePublisher) PublishAppointmentCancelled(ctx context.Context, event entity.AppointmentCancelledEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }
