package service

import (
	"io"
	"sync"
	"time"

	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeScheduleRepo struct {
	schedules []entity.DoctorSchedule
}

func (f *fakeScheduleRepo) add(doctorID uuid.UUID, date time.Time, start, end string, quota int) entity.DoctorSchedule {
	s := entity.DoctorSchedule{
		ID:           len(f.schedules) + 1,
		DoctorID:     doctorID,
		ScheduleDate: date,
		StartTime:    start,
		EndTime:      end,
		SlotDuration: 30,
		TotalQuota:   quota,
	}
	f.schedules = append(f.schedules, s)
	return s
}

func (f *fakeScheduleRepo) Create(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	schedule.ID = len(f.schedules) + 1
	f.schedules = append(f.schedules, *schedule)
	return nil
}

func (f *fakeScheduleRepo) FindByID(db *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			s := f.schedules[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeScheduleRepo) FindByIDForUpdate(db *gorm.DB, id int) (*entity.DoctorSchedule, error) {
	return f.FindByID(db, id)
}

func (f *fakeScheduleRepo) FindByDoctorID(db *gorm.DB, doctorID uuid.UUID) ([]entity.DoctorSchedule, error) {
	var out []entity.DoctorSchedule
	for _, s := range f.schedules {
		if s.DoctorID == doctorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) FindAll(db *gorm.DB) ([]entity.DoctorSchedule, error) {
	return append([]entity.DoctorSchedule(nil), f.schedules...), nil
}

func (f *fakeScheduleRepo) FindByFilter(db *gorm.DB, filter *entity.ScheduleFilter) ([]entity.DoctorSchedule, error) {
	var out []entity.DoctorSchedule
	for _, s := range f.schedules {
		if !containsID(filter.DoctorIDs, s.DoctorID) {
			continue
		}
		d := availability.DateOnly(s.ScheduleDate)
		if filter.From != nil && d.Before(*filter.From) {
			continue
		}
		if filter.To != nil && d.After(*filter.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeScheduleRepo) Update(db *gorm.DB, schedule *entity.DoctorSchedule) error {
	for i := range f.schedules {
		if f.schedules[i].ID == schedule.ID {
			f.schedules[i] = *schedule
		}
	}
	return nil
}

func (f *fakeScheduleRepo) Delete(db *gorm.DB, id int) (int64, error) {
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			f.schedules = append(f.schedules[:i], f.schedules[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeAppointmentRepo struct {
	appointments []entity.Appointment
}

func (f *fakeAppointmentRepo) book(schedule entity.DoctorSchedule, start, end string) {
	f.appointments = append(f.appointments, entity.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        schedule.DoctorID,
		ScheduleID:      schedule.ID,
		AppointmentDate: schedule.ScheduleDate,
		StartTime:       start,
		EndTime:         end,
		Status:          entity.AppointmentStatusScheduled,
	})
}

func (f *fakeAppointmentRepo) Create(db *gorm.DB, appointment *entity.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	f.appointments = append(f.appointments, *appointment)
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
	return append([]entity.Appointment(nil), f.appointments...), nil
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
	var out []entity.Appointment
	for _, a := range f.appointments {
		d := availability.DateOnly(a.AppointmentDate)
		if !containsID(doctorIDs, a.DoctorID) || !a.HoldsSlot() || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ExistsActiveForPatientOnDate(db *gorm.DB, patientID uuid.UUID, specialization string, date time.Time) (bool, error) {
	for _, a := range f.appointments {
		if a.PatientID == patientID && a.IsActive() && availability.DateOnly(a.AppointmentDate).Equal(availability.DateOnly(date)) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointmentRepo) CountBookedBySchedule(db *gorm.DB, scheduleID int) (int64, error) {
	var n int64
	for _, a := range f.appointments {
		if a.ScheduleID == scheduleID && a.HoldsSlot() {
			n++
		}
	}
	return n, nil
}

func (f *fakeAppointmentRepo) MaxQueueNumber(db *gorm.DB, scheduleID int) (int, error) {
	max := 0
	for _, a := range f.appointments {
		if a.ScheduleID == scheduleID && a.QueueNumber > max {
			max = a.QueueNumber
		}
	}
	return max, nil
}

func (f *fakeAppointmentRepo) Cancel(db *gorm.DB, id uuid.UUID, reason string, at time.Time) (int64, error) {
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
		User:           entity.User{ID: id, FullName: name, Email: id.String() + "@clinic.test"},
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
	var out []entity.DoctorProfile
	for _, d := range f.doctors {
		if (specialization == "" || d.Specialization == specialization) && d.User.Active() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDoctorRepo) FindActiveBySpecialization(db *gorm.DB, specialization string, excludeID uuid.UUID) ([]entity.DoctorProfile, error) {
	var out []entity.DoctorProfile
	for _, d := range f.doctors {
		if d.Specialization == specialization && d.UserID != excludeID && d.User.Active() {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu       sync.Mutex
	created  []entity.Notification
	delivery map[uuid.UUID]entity.DeliveryResult
}

func (f *fakeNotificationRepo) Create(db *gorm.DB, notification *entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeNotificationRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].ID == id {
			n := f.created[i]
			return &n, nil
		}
	}
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
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delivery == nil {
		f.delivery = make(map[uuid.UUID]entity.DeliveryResult)
	}
	f.delivery[id] = result
	return nil
}

func (f *fakeNotificationRepo) deliveryOf(id uuid.UUID) (entity.DeliveryResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.delivery[id]
	return r, ok
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
