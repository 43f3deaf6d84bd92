package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"finsight/internal/domain/user"
)

// ScheduleTime is one time of day when the stale-sync sweep runs.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// Config holds the scheduler's sweep settings.
type Config struct {
	ScheduleTimes []string
	Staleness     time.Duration // skip users synced more recently than this
	RunOnStartup  bool
}

// Scheduler enqueues bulk syncs for users whose data has gone stale, at
// configured times of day. It shares the worker pool with webhook-triggered
// syncs so all provider calls go through the same rate limiting.
type Scheduler struct {
	userRepo      user.Repository
	syncService   SyncService
	pool          *WorkerPool
	scheduleTimes []ScheduleTime
	staleness     time.Duration
	runOnStartup  bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun string
	mu      sync.Mutex
}

func NewScheduler(userRepo user.Repository, syncService SyncService, pool *WorkerPool, cfg Config) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, timeStr := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}
	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized with %d schedule times: %v, staleness %v",
		len(scheduleTimes), cfg.ScheduleTimes, cfg.Staleness)

	return &Scheduler{
		userRepo:      userRepo,
		syncService:   syncService,
		pool:          pool,
		scheduleTimes: scheduleTimes,
		staleness:     cfg.Staleness,
		runOnStartup:  cfg.RunOnStartup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the scheduling loop. The worker pool must be started
// separately; webhook handlers share it.
func (s *Scheduler) Start() {
	if s.runOnStartup {
		log.Println("Scheduler: Running initial sweep on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sweep()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Println("Scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Scheduler loop: Context cancelled, shutting down")
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				log.Printf("Scheduler: Triggered at %s", now.Format("15:04"))
				s.sweep()
			}
		}
	}
}

// shouldRun checks whether the current minute matches a scheduled time and
// has not fired yet.
func (s *Scheduler) shouldRun(now time.Time) bool {
	currentKey := fmt.Sprintf("%s-%02d:%02d", now.Format("2006-01-02"), now.Hour(), now.Minute())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == currentKey {
		return false
	}

	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = currentKey
			return true
		}
	}

	return false
}

// sweep enqueues a bulk sync job for every user with stale data.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.staleness)

	users, err := s.userRepo.ListSyncCandidates(ctx, cutoff)
	if err != nil {
		log.Printf("Scheduler: failed to list sync candidates: %v", err)
		return
	}
	if len(users) == 0 {
		log.Println("Scheduler: no stale users to sync")
		return
	}

	jobs := make([]Job, 0, len(users))
	for _, u := range users {
		jobs = append(jobs, NewUserSyncJob(u.ID, s.syncService))
	}

	log.Printf("Scheduler: enqueueing bulk sync for %d stale users", len(users))
	s.pool.SubmitBatch(jobs)
}

// TriggerNow manually triggers a sweep.
func (s *Scheduler) TriggerNow() {
	log.Println("Scheduler: Manual trigger")
	go s.sweep()
}

// Shutdown stops the scheduling loop. The worker pool is shut down by its
// owner.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Scheduler: Scheduler loop stopped gracefully")
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for scheduler loop to stop")
	}
}
