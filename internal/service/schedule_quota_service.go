package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"caqm-backend/internal/availability"
	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrQuotaFull      = errors.New("schedule quota is full")
	ErrQuotaNotSynced = errors.New("schedule quota is not cached")
)

// reserveSlotScript takes one unit of quota and issues the next queue number
// in a single round trip. Returns -2 when the quota key is missing (cache was
// flushed or never synced) and -1 when the schedule is full.
var reserveSlotScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -2
	end
	local remaining = redis.call('DECR', KEYS[1])
	if remaining < 0 then
		redis.call('INCR', KEYS[1])
		return -1
	end
	return redis.call('INCR', KEYS[2])
`)

// releaseSlotScript gives a unit of quota back. A missing key is left alone;
// the next sync rebuilds it from the database.
var releaseSlotScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -2
	end
	return redis.call('INCR', KEYS[1])
`)

const (
	QuotaKeyPrefix = "schedule:quota:"
	QueueKeyPrefix = "schedule:queue:"

	quotaSyncBatchSize   = 500
	mutexCleanupInterval = 10 * time.Minute
	mutexStaleThreshold  = 10 * time.Minute
)

// ScheduleQuotaService mirrors per-schedule remaining quota and queue counters
// in Redis so bookings can reserve capacity without locking schedule rows.
//
// PostgreSQL stays the source of truth. Every cached value can be rebuilt
// with SyncSchedule or SyncOnStartup.
type ScheduleQuotaService interface {
	Reserve(ctx context.Context, scheduleID int) (int, error)
	Release(ctx context.Context, scheduleID int) error
	SyncSchedule(ctx context.Context, schedule *entity.DoctorSchedule) error
	AdjustQuota(ctx context.Context, scheduleID int, delta int, scheduleDate time.Time) error
	DeleteSchedule(ctx context.Context, scheduleID int) error
	SyncOnStartup(ctx context.Context) error
	Stop()
}

type scheduleQuotaService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	loc             *time.Location
	now             func() time.Time

	// map[int]*scheduleMutex, serializes sync and adjust per schedule
	scheduleMu sync.Map

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

type scheduleMutex struct {
	mu       sync.Mutex
	lastUsed atomic.Int64
}

// quotaRow is one schedule's cache state computed from the database
type quotaRow struct {
	ScheduleID     int
	RemainingQuota int
	MaxQueueNumber int
	ScheduleDate   time.Time
}

// NewScheduleQuotaService starts a background loop that drops idle schedule
// mutexes. Call Stop on shutdown.
func NewScheduleQuotaService(db *gorm.DB, redisClient *redis.Client, log *logrus.Logger, appointmentRepo repository.AppointmentRepository, loc *time.Location) ScheduleQuotaService {
	if loc == nil {
		loc = time.UTC
	}
	svc := &scheduleQuotaService{
		db:              db,
		redisClient:     redisClient,
		log:             log,
		appointmentRepo: appointmentRepo,
		loc:             loc,
		now:             time.Now,
		stopChan:        make(chan struct{}),
	}

	svc.wg.Add(1)
	go svc.cleanupLoop()

	return svc
}

func (s *scheduleQuotaService) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("Schedule quota service stopped")
	}
}

// Reserve takes one unit of quota and returns the issued queue number.
func (s *scheduleQuotaService) Reserve(ctx context.Context, scheduleID int) (int, error) {
	result, err := reserveSlotScript.Run(ctx, s.redisClient, []string{quotaKey(scheduleID), queueKey(scheduleID)}).Int()
	if err != nil {
		s.log.Warnf("Failed to reserve quota for schedule %d: %+v", scheduleID, err)
		return 0, fmt.Errorf("reserve quota for schedule %d: %w", scheduleID, err)
	}

	switch result {
	case -2:
		return 0, ErrQuotaNotSynced
	case -1:
		return 0, ErrQuotaFull
	}

	s.log.Debugf("Reserved slot on schedule %d: queue_number=%d", scheduleID, result)
	return result, nil
}

// Release returns one unit of quota. Queue numbers are never handed back.
func (s *scheduleQuotaService) Release(ctx context.Context, scheduleID int) error {
	mt := s.scheduleMutex(scheduleID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	result, err := releaseSlotScript.Run(ctx, s.redisClient, []string{quotaKey(scheduleID)}).Int()
	if err != nil {
		s.log.Warnf("Failed to release quota for schedule %d: %+v", scheduleID, err)
		return fmt.Errorf("release quota for schedule %d: %w", scheduleID, err)
	}
	if result == -2 {
		s.log.Debugf("Quota for schedule %d not cached, nothing to release", scheduleID)
		return nil
	}

	s.log.Debugf("Released slot on schedule %d", scheduleID)
	return nil
}

// SyncSchedule overwrites the cached counters of one schedule with values
// derived from its appointments.
func (s *scheduleQuotaService) SyncSchedule(ctx context.Context, schedule *entity.DoctorSchedule) error {
	mt := s.scheduleMutex(schedule.ID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if availability.DateOnly(schedule.ScheduleDate).Before(s.today()) {
		s.log.Debugf("Skipping sync for past schedule %d", schedule.ID)
		return nil
	}

	db := s.db
	if db != nil {
		db = db.WithContext(ctx)
	}

	booked, err := s.appointmentRepo.CountBookedBySchedule(db, schedule.ID)
	if err != nil {
		s.log.Warnf("Failed to count appointments for schedule %d: %+v", schedule.ID, err)
		return fmt.Errorf("count appointments for schedule %d: %w", schedule.ID, err)
	}
	maxQueue, err := s.appointmentRepo.MaxQueueNumber(db, schedule.ID)
	if err != nil {
		s.log.Warnf("Failed to read queue number for schedule %d: %+v", schedule.ID, err)
		return fmt.Errorf("read queue number for schedule %d: %w", schedule.ID, err)
	}

	remaining := schedule.TotalQuota - int(booked)
	if remaining < 0 {
		remaining = 0
	}

	ttl := s.ttl(schedule.ScheduleDate)
	pipe := s.redisClient.TxPipeline()
	pipe.Set(ctx, quotaKey(schedule.ID), remaining, ttl)
	pipe.Set(ctx, queueKey(schedule.ID), maxQueue, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warnf("Failed to sync quota for schedule %d: %+v", schedule.ID, err)
		return fmt.Errorf("sync quota for schedule %d: %w", schedule.ID, err)
	}

	s.log.Debugf("Synced schedule %d: quota=%d, queue=%d, ttl=%v", schedule.ID, remaining, maxQueue, ttl)
	return nil
}

// AdjustQuota applies a TotalQuota change to the cached remaining quota,
// clamping at zero.
func (s *scheduleQuotaService) AdjustQuota(ctx context.Context, scheduleID int, delta int, scheduleDate time.Time) error {
	mt := s.scheduleMutex(scheduleID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if delta == 0 || availability.DateOnly(scheduleDate).Before(s.today()) {
		return nil
	}

	key := quotaKey(scheduleID)
	current, err := s.redisClient.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		s.log.Debugf("Quota for schedule %d not cached, skipping adjust", scheduleID)
		return nil
	}
	if err != nil {
		s.log.Warnf("Failed to read quota for schedule %d: %+v", scheduleID, err)
		return fmt.Errorf("read quota for schedule %d: %w", scheduleID, err)
	}

	if current+delta < 0 {
		s.log.Warnf("Quota delta %d on schedule %d would go negative (current %d), clamping", delta, scheduleID, current)
		delta = -current
	}

	pipe := s.redisClient.TxPipeline()
	pipe.IncrBy(ctx, key, int64(delta))
	pipe.Expire(ctx, key, s.ttl(scheduleDate))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warnf("Failed to adjust quota for schedule %d: %+v", scheduleID, err)
		return fmt.Errorf("adjust quota for schedule %d: %w", scheduleID, err)
	}

	s.log.Debugf("Adjusted quota for schedule %d by %d", scheduleID, delta)
	return nil
}

func (s *scheduleQuotaService) DeleteSchedule(ctx context.Context, scheduleID int) error {
	mt := s.scheduleMutex(scheduleID)
	mt.mu.Lock()
	defer func() {
		mt.mu.Unlock()
		s.scheduleMu.Delete(scheduleID)
	}()

	if err := s.redisClient.Del(ctx, quotaKey(scheduleID), queueKey(scheduleID)).Err(); err != nil {
		s.log.Warnf("Failed to delete quota keys for schedule %d: %+v", scheduleID, err)
		return fmt.Errorf("delete quota keys for schedule %d: %w", scheduleID, err)
	}
	return nil
}

// SyncOnStartup rebuilds the cache for every schedule from today onwards,
// in batches with one pipeline per batch. Run it before serving traffic.
func (s *scheduleQuotaService) SyncOnStartup(ctx context.Context) error {
	s.log.Info("Rebuilding schedule quota cache from database...")
	started := time.Now()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.log.Warnf("Redis is not available, skipping quota sync: %+v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	today := s.today().Format(availability.DateLayout)
	offset := 0
	total := 0

	for {
		var rows []quotaRow
		err := s.db.WithContext(ctx).Model(&entity.DoctorSchedule{}).
			Select(`
				doctor_schedules.id AS schedule_id,
				doctor_schedules.total_quota - COUNT(CASE WHEN appointments.status IN ? THEN 1 END) AS remaining_quota,
				COALESCE(MAX(appointments.queue_number), 0) AS max_queue_number,
				doctor_schedules.schedule_date
			`, entity.BookedAppointmentStatuses).
			Joins("LEFT JOIN appointments ON appointments.schedule_id = doctor_schedules.id").
			Where("doctor_schedules.schedule_date >= ?", today).
			Group("doctor_schedules.id, doctor_schedules.total_quota, doctor_schedules.schedule_date").
			Order("doctor_schedules.id").
			Limit(quotaSyncBatchSize).
			Offset(offset).
			Scan(&rows).Error
		if err != nil {
			s.log.Errorf("Failed to load schedules at offset %d: %+v", offset, err)
			return fmt.Errorf("load schedules at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}

		pipe := s.redisClient.TxPipeline()
		for _, row := range rows {
			remaining := row.RemainingQuota
			if remaining < 0 {
				remaining = 0
			}
			ttl := s.ttl(row.ScheduleDate)
			pipe.Set(ctx, quotaKey(row.ScheduleID), remaining, ttl)
			pipe.Set(ctx, queueKey(row.ScheduleID), row.MaxQueueNumber, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Errorf("Failed to write quota batch at offset %d: %+v", offset, err)
			return fmt.Errorf("write quota batch at offset %d: %w", offset, err)
		}

		total += len(rows)
		if len(rows) < quotaSyncBatchSize {
			break
		}
		offset += quotaSyncBatchSize

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.log.Infof("Schedule quota cache rebuilt: %d schedule(s) in %v", total, time.Since(started))
	return nil
}

func (s *scheduleQuotaService) today() time.Time {
	return availability.DateOnly(availability.WallClock(s.now(), s.loc))
}

// ttl keeps keys until the end of the day after the schedule date.
func (s *scheduleQuotaService) ttl(scheduleDate time.Time) time.Duration {
	expireAt := availability.DateOnly(scheduleDate).AddDate(0, 0, 2)
	ttl := expireAt.Sub(availability.WallClock(s.now(), s.loc))
	if ttl <= 0 {
		return time.Minute
	}
	return ttl
}

func (s *scheduleQuotaService) scheduleMutex(scheduleID int) *scheduleMutex {
	v, _ := s.scheduleMu.LoadOrStore(scheduleID, &scheduleMutex{})
	mt := v.(*scheduleMutex)
	mt.lastUsed.Store(time.Now().Unix())
	return mt
}

func (s *scheduleQuotaService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanupStaleMutexes()
		}
	}
}

// cleanupStaleMutexes only drops mutexes it can lock, checking lastUsed while holding the lock.
func (s *scheduleQuotaService) cleanupStaleMutexes() {
	cutoff := time.Now().Add(-mutexStaleThreshold).Unix()
	cleaned := 0

	s.scheduleMu.Range(func(key, value any) bool {
		mt, ok := value.(*scheduleMutex)
		if !ok {
			return true
		}
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoff {
				s.scheduleMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		s.log.Debugf("Dropped %d idle schedule mutex(es)", cleaned)
	}
}

func quotaKey(scheduleID int) string {
	return fmt.Sprintf("%s%d", QuotaKeyPrefix, scheduleID)
}

func queueKey(scheduleID int) string {
	return fmt.Sprintf("%s%d", QueueKeyPrefix, scheduleID)
}
