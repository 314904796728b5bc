package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"caqm-backend/config"
	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrRecommendationSourceMissing = errors.New("recommendation requires an appointment")

const (
	defaultWindowDays    = 14
	defaultMaxCandidates = 5
)

// SlotExclusions holds slots and whole doctor-days that must never be offered
// as alternatives: the cancelled slot itself and, during a bulk cancellation,
// every doctor/date pair the batch is cancelling.
type SlotExclusions struct {
	slots map[string]struct{}
	days  map[string]struct{}
}

func NewSlotExclusions() *SlotExclusions {
	return &SlotExclusions{
		slots: make(map[string]struct{}),
		days:  make(map[string]struct{}),
	}
}

func (e *SlotExclusions) ExcludeSlot(doctorID uuid.UUID, date time.Time, start string) {
	e.slots[slotKey(doctorID, date, start)] = struct{}{}
}

func (e *SlotExclusions) ExcludeDay(doctorID uuid.UUID, date time.Time) {
	e.days[dayKey(doctorID, date)] = struct{}{}
}

func (e *SlotExclusions) ExcludesDay(doctorID uuid.UUID, date time.Time) bool {
	_, ok := e.days[dayKey(doctorID, date)]
	return ok
}

func (e *SlotExclusions) Excludes(doctorID uuid.UUID, date time.Time, start string) bool {
	if e.ExcludesDay(doctorID, date) {
		return true
	}
	_, ok := e.slots[slotKey(doctorID, date, start)]
	return ok
}

func dayKey(doctorID uuid.UUID, date time.Time) string {
	return doctorID.String() + "|" + date.Format(availability.DateLayout)
}

func slotKey(doctorID uuid.UUID, date time.Time, start string) string {
	return dayKey(doctorID, date) + "|" + availability.NormalizeClock(start)
}

// RecommendationRequest describes a cancelled appointment. Appointment.Doctor
// should be preloaded; it is fetched when missing.
type RecommendationRequest struct {
	Appointment *entity.Appointment
	Exclusions  *SlotExclusions
}

// RecommendationService computes alternative slots for a cancelled appointment.
type RecommendationService interface {
	Recommend(ctx context.Context, db *gorm.DB, req RecommendationRequest) (entity.RecommendationList, error)
	FreeSlots(ctx context.Context, db *gorm.DB, doctor *entity.DoctorProfile, date time.Time) (entity.RecommendationList, error)
}

type recommendationService struct {
	log             *logrus.Logger
	scheduleRepo    repository.DoctorScheduleRepository
	appointmentRepo repository.AppointmentRepository
	doctorRepo      repository.DoctorProfileRepository
	cfg             config.RecommendationConfig
	loc             *time.Location
	now             func() time.Time
}

func NewRecommendationService(
	log *logrus.Logger,
	scheduleRepo repository.DoctorScheduleRepository,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorProfileRepository,
	cfg config.RecommendationConfig,
	loc *time.Location,
) RecommendationService {
	return newRecommendationService(log, scheduleRepo, appointmentRepo, doctorRepo, cfg, loc, time.Now)
}

func newRecommendationService(
	log *logrus.Logger,
	scheduleRepo repository.DoctorScheduleRepository,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorProfileRepository,
	cfg config.RecommendationConfig,
	loc *time.Location,
	now func() time.Time,
) *recommendationService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	if loc == nil {
		loc = time.UTC
	}
	return &recommendationService{
		log:             log,
		scheduleRepo:    scheduleRepo,
		appointmentRepo: appointmentRepo,
		doctorRepo:      doctorRepo,
		cfg:             cfg,
		loc:             loc,
		now:             now,
	}
}

// Recommend returns up to MaxCandidates alternatives, same-doctor slots first.
//
// Flow:
// 1. Same doctor, earliest free slot per day, inside [original, original+WindowDays]
// 2. Other active doctors with the same specialization, earliest free slot each,
// only when step 1 found nothing (or always, with FillWithSpecialization)
// 3. Cap the combined list
//
// The cancelled slot is always excluded. An empty list is a valid result.
func (s *recommendationService) Recommend(ctx context.Context, db *gorm.DB, req RecommendationRequest) (entity.RecommendationList, error) {
	appointment := req.Appointment
	if appointment == nil {
		return nil, ErrRecommendationSourceMissing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exclusions := req.Exclusions
	if exclusions == nil {
		exclusions = NewSlotExclusions()
	}
	exclusions.ExcludeSlot(appointment.DoctorID, availability.DateOnly(appointment.AppointmentDate), appointment.StartTime)

	doctor, err := s.resolveDoctor(db, appointment)
	if err != nil {
		return nil, err
	}

	now := availability.WallClock(s.now(), s.loc)
	from, to, ok := s.window(appointment.AppointmentDate, now)
	result := entity.RecommendationList{}
	if !ok || doctor == nil {
		return result, nil
	}

	sameDoctor, err := s.sameDoctor(db, doctor, from, to, now, appointment.ID, exclusions, s.cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}
	result = append(result, sameDoctor...)

	remaining := s.cfg.MaxCandidates - len(result)
	if remaining > 0 && (len(result) == 0 || s.cfg.FillWithSpecialization) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		alternatives, err := s.sameSpecialization(db, doctor, from, to, now, appointment.ID, exclusions, remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, alternatives...)
	}

	s.log.Debugf("Recommendations for appointment %s: %d candidate(s)", appointment.ID, len(result))
	return result, nil
}

// FreeSlots lists every bookable slot of a doctor on one date.
func (s *recommendationService) FreeSlots(ctx context.Context, db *gorm.DB, doctor *entity.DoctorProfile, date time.Time) (entity.RecommendationList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := availability.DateOnly(date)
	now := availability.WallClock(s.now(), s.loc)

	pool, err := s.loadPool(db, []uuid.UUID{doctor.UserID}, day, day, uuid.Nil)
	if err != nil {
		return nil, err
	}

	result := entity.RecommendationList{}
	for _, schedule := range pool.schedules {
		for _, start := range pool.freeSlots(s.log, schedule, now, nil) {
			result = append(result, toRecommendation(entity.RecommendationSameDoctor, doctor, schedule, start))
		}
	}
	return result, nil
}

func (s *recommendationService) resolveDoctor(db *gorm.DB, appointment *entity.Appointment) (*entity.DoctorProfile, error) {
	if appointment.Doctor.UserID != uuid.Nil {
		return &appointment.Doctor, nil
	}
	doctor, err := s.doctorRepo.FindByUserID(db, appointment.DoctorID)
	if err != nil {
		s.log.Warnf("Failed to load doctor %s for recommendations: %+v", appointment.DoctorID, err)
		return nil, err
	}
	return doctor, nil
}

// window returns the inclusive search range, never starting before today.
func (s *recommendationService) window(original time.Time, now time.Time) (time.Time, time.Time, bool) {
	from := availability.DateOnly(original)
	to := from.AddDate(0, 0, s.cfg.WindowDays)
	today := availability.DateOnly(now)
	if from.Before(today) {
		from = today
	}
	return from, to, !to.Before(from)
}

func (s *recommendationService) sameDoctor(db *gorm.DB, doctor *entity.DoctorProfile, from, to, now time.Time, freed uuid.UUID, exclusions *SlotExclusions, limit int) (entity.RecommendationList, error) {
	pool, err := s.loadPool(db, []uuid.UUID{doctor.UserID}, from, to, freed)
	if err != nil {
		return nil, err
	}

	result := entity.RecommendationList{}
	usedDays := make(map[time.Time]struct{})
	for _, schedule := range pool.schedules {
		if len(result) >= limit {
			break
		}
		day := availability.DateOnly(schedule.ScheduleDate)
		if _, used := usedDays[day]; used {
			continue
		}
		slots := pool.freeSlots(s.log, schedule, now, exclusions)
		if len(slots) == 0 {
			continue
		}
		usedDays[day] = struct{}{}
		result = append(result, toRecommendation(entity.RecommendationSameDoctor, doctor, schedule, slots[0]))
	}
	return result, nil
}

func (s *recommendationService) sameSpecialization(db *gorm.DB, doctor *entity.DoctorProfile, from, to, now time.Time, freed uuid.UUID, exclusions *SlotExclusions, limit int) (entity.RecommendationList, error) {
	if doctor.Specialization == "" {
		return nil, nil
	}
	peers, err := s.doctorRepo.FindActiveBySpecialization(db, doctor.Specialization, doctor.UserID)
	if err != nil {
		s.log.Warnf("Failed to find %s doctors: %+v", doctor.Specialization, err)
		return nil, err
	}
	if len(peers) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(peers))
	byID := make(map[uuid.UUID]*entity.DoctorProfile, len(peers))
	for i := range peers {
		ids[i] = peers[i].UserID
		byID[peers[i].UserID] = &peers[i]
	}

	pool, err := s.loadPool(db, ids, from, to, freed)
	if err != nil {
		return nil, err
	}

	type earliest struct {
		doctor   *entity.DoctorProfile
		schedule entity.DoctorSchedule
		start    time.Time
	}
	best := make(map[uuid.UUID]earliest)
	for _, schedule := range pool.schedules {
		peer, ok := byID[schedule.DoctorID]
		if !ok {
			continue
		}
		slots := pool.freeSlots(s.log, schedule, now, exclusions)
		if len(slots) == 0 {
			continue
		}
		current, seen := best[peer.UserID]
		if !seen || slots[0].Before(current.start) {
			best[peer.UserID] = earliest{doctor: peer, schedule: schedule, start: slots[0]}
		}
	}

	candidates := make([]earliest, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].start.Equal(candidates[j].start) {
			return candidates[i].start.Before(candidates[j].start)
		}
		return candidates[i].doctor.User.FullName < candidates[j].doctor.User.FullName
	})

	result := entity.RecommendationList{}
	for _, c := range candidates {
		if len(result) >= limit {
			break
		}
		result = append(result, toRecommendation(entity.RecommendationSameSpecialization, c.doctor, c.schedule, c.start))
	}
	return result, nil
}

// slotPool is the schedules and occupied intervals of a set of doctors over a date range.
type slotPool struct {
	schedules []entity.DoctorSchedule
	busy      map[string][]availability.Interval
	booked    map[int]int
}

// loadPool skips the freed appointment, so a preview of a still-active
// appointment sees the same capacity the cancellation will.
func (s *recommendationService) loadPool(db *gorm.DB, doctorIDs []uuid.UUID, from, to time.Time, freed uuid.UUID) (*slotPool, error) {
	schedules, err := s.scheduleRepo.FindByFilter(db, &entity.ScheduleFilter{
		DoctorIDs: doctorIDs,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		s.log.Warnf("Failed to load schedules for recommendations: %+v", err)
		return nil, err
	}

	appointments, err := s.appointmentRepo.FindBookedByDoctorsBetween(db, doctorIDs, from, to)
	if err != nil {
		s.log.Warnf("Failed to load appointments for recommendations: %+v", err)
		return nil, err
	}

	sort.SliceStable(schedules, func(i, j int) bool {
		di, dj := availability.DateOnly(schedules[i].ScheduleDate), availability.DateOnly(schedules[j].ScheduleDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return availability.NormalizeClock(schedules[i].StartTime) < availability.NormalizeClock(schedules[j].StartTime)
	})

	pool := &slotPool{
		schedules: schedules,
		busy:      make(map[string][]availability.Interval),
		booked:    make(map[int]int),
	}
	for _, appointment := range appointments {
		if !appointment.HoldsSlot() || (freed != uuid.Nil && appointment.ID == freed) {
			continue
		}
		pool.booked[appointment.ScheduleID]++
		start, err := availability.At(appointment.AppointmentDate, appointment.StartTime)
		if err != nil {
			s.log.Warnf("Skipping appointment %s with malformed start time: %+v", appointment.ID, err)
			continue
		}
		end, err := availability.At(appointment.AppointmentDate, appointment.EndTime)
		if err != nil || !end.After(start) {
			end = start.Add(entity.DefaultSlotDuration * time.Minute)
		}
		key := dayKey(appointment.DoctorID, availability.DateOnly(appointment.AppointmentDate))
		pool.busy[key] = append(pool.busy[key], availability.Interval{Start: start, End: end})
	}
	return pool, nil
}

// freeSlots returns the open slot starts of one schedule, honoring quota and exclusions.
func (p *slotPool) freeSlots(log *logrus.Logger, schedule entity.DoctorSchedule, now time.Time, exclusions *SlotExclusions) []time.Time {
	day := availability.DateOnly(schedule.ScheduleDate)
	if exclusions != nil && exclusions.ExcludesDay(schedule.DoctorID, day) {
		return nil
	}
	if schedule.TotalQuota > 0 && p.booked[schedule.ID] >= schedule.TotalQuota {
		return nil
	}

	start, err := availability.At(day, schedule.StartTime)
	if err != nil {
		log.Warnf("Skipping schedule %d with malformed start time: %+v", schedule.ID, err)
		return nil
	}
	end, err := availability.At(day, schedule.EndTime)
	if err != nil {
		log.Warnf("Skipping schedule %d with malformed end time: %+v", schedule.ID, err)
		return nil
	}

	length := schedule.SlotLength()
	slots := availability.AvailableSlots(start, end, length, length, p.busy[dayKey(schedule.DoctorID, day)], now)
	if exclusions == nil {
		return slots
	}

	open := slots[:0]
	for _, slot := range slots {
		if !exclusions.Excludes(schedule.DoctorID, day, slot.Format(availability.ClockLayout)) {
			open = append(open, slot)
		}
	}
	return open
}

func toRecommendation(kind entity.RecommendationKind, doctor *entity.DoctorProfile, schedule entity.DoctorSchedule, start time.Time) entity.Recommendation {
	return entity.Recommendation{
		Kind:           kind,
		DoctorID:       doctor.UserID,
		DoctorName:     doctor.DisplayName(),
		Specialization: doctor.Specialization,
		ScheduleID:     schedule.ID,
		Date:           start.Format(availability.DateLayout),
		StartTime:      start.Format(availability.ClockLayout),
		EndTime:        start.Add(schedule.SlotLength()).Format(availability.ClockLayout),
	}
}
