package server

import (
	"context"
	"log"
	"sync"
	"time"
)

const minSchedulerInterval = time.Minute

// Scheduler triggers periodic sync runs. A tick is skipped when the previous
// run is still in flight.
type Scheduler struct {
	mu        sync.RWMutex
	enabled   bool
	interval  time.Duration
	nextRunAt time.Time
	lastRunAt time.Time
	runner    SyncRunner
	logger    *log.Logger
	cancel    context.CancelFunc
	ticker    *time.Ticker
}

// SchedulerState is a snapshot of the scheduler for the status API.
type SchedulerState struct {
	Enabled   bool          `json:"enabled"`
	Interval  time.Duration `json:"interval"`
	NextRunAt time.Time     `json:"next_run_at"`
	LastRunAt time.Time     `json:"last_run_at"`
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner SyncRunner, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval < minSchedulerInterval {
		interval = minSchedulerInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		logger:   logger,
	}
}

// Start begins ticking until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled || s.runner == nil {
		return
	}

	s.enabled = true
	s.nextRunAt = time.Now().Add(s.interval)

	schedulerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = time.NewTicker(s.interval)

	go s.loop(schedulerCtx)

	s.logger.Printf("scheduler started: interval=%v next=%s", s.interval, s.nextRunAt.Format(time.RFC3339))
}

// Stop halts the ticker.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	s.enabled = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.nextRunAt = time.Time{}

	s.logger.Println("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		s.mu.RLock()
		ticker := s.ticker
		s.mu.RUnlock()

		if ticker == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	runner := s.runner
	if !s.enabled || runner == nil {
		s.mu.Unlock()
		return
	}

	if running, _ := runner.Status(); running {
		s.logger.Println("scheduler: skipping tick, sync already running")
		s.nextRunAt = time.Now().Add(s.interval)
		s.mu.Unlock()
		return
	}

	s.lastRunAt = time.Now()
	s.nextRunAt = time.Now().Add(s.interval)
	s.mu.Unlock()

	s.logger.Println("scheduler: triggering sync run")
	if _, err := runner.Sync(ctx); err != nil {
		s.logger.Printf("scheduler: sync failed: %v", err)
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() *SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &SchedulerState{
		Enabled:   s.enabled,
		Interval:  s.interval,
		NextRunAt: s.nextRunAt,
		LastRunAt: s.lastRunAt,
	}
}
