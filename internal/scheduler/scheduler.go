package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/internal/cache"
	"github.com/marketops/rankpulse/internal/config"
	"github.com/marketops/rankpulse/internal/schedule"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Manual-trigger errors. Callers map these onto distinct API responses.
var (
	ErrNotOwner         = errors.New("schedule not owned by caller")
	ErrScheduleInactive = errors.New("schedule is not active")
	ErrAlreadyRunning   = errors.New("schedule already has a running instance")
	ErrExecutionFailed  = errors.New("execution failed")
)

// Scheduler is the trigger surface. All three entry points (periodic tick,
// external poll, manual single-schedule trigger) funnel into the same
// reap-select-execute pass.
type Scheduler struct {
	store       store.Store
	exec        *Executor
	cache       cache.Cache
	interval    time.Duration
	reapTimeout time.Duration
	parallelism int
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(st store.Store, exec *Executor, c cache.Cache, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:       st,
		exec:        exec,
		cache:       c,
		interval:    cfg.Interval,
		reapTimeout: cfg.ReapTimeout,
		parallelism: cfg.Parallelism,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TickSummary reports one pass over the due schedules.
type TickSummary struct {
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
	Reaped    int64     `json:"reaped"`
	Timestamp time.Time `json:"timestamp"`
}

// Tick performs one scheduling pass: reap stale runs, select due schedules,
// execute each with bounded parallelism. Safe to invoke concurrently with
// itself and with manual triggers; the store's run-uniqueness guard resolves
// any races.
func (s *Scheduler) Tick(ctx context.Context) TickSummary {
	now := s.now()
	summary := TickSummary{Timestamp: now}

	reaped, err := s.store.ReapStaleRuns(ctx, now.Add(-s.reapTimeout))
	if err != nil {
		slog.Error("reap stale runs", "error", err)
	} else if reaped > 0 {
		// Something crashed or hung in a prior pass.
		slog.Warn("reaped stuck runs", "count", reaped, "older_than", s.reapTimeout)
		summary.Reaped = reaped
	}

	due, err := s.store.ListDueSchedules(ctx, now)
	if err != nil {
		slog.Error("list due schedules", "error", err)
		return summary
	}
	if len(due) == 0 {
		return summary
	}
	slog.Info("processing due schedules", "count", len(due))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, sa := range due {
		sa.EngineIDs = schedule.NormalizeEngines(sa.Engines)
		g.Go(func() error {
			outcome := s.exec.Execute(gctx, sa)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeCompleted:
				summary.Processed++
			case OutcomeFailed:
				summary.Processed++
				summary.Errors++
			case OutcomeSkipped:
				// Another trigger owns this slot; nothing to count.
			}
			return nil
		})
	}
	_ = g.Wait()

	if b, err := json.Marshal(summary); err == nil {
		_ = s.cache.Set(ctx, cache.LastTickKey, b, time.Hour)
	}
	return summary
}

// RunNow executes one schedule immediately on behalf of its owner, bypassing
// the due-time check. The run-uniqueness guard still applies: a manual
// trigger cannot run concurrently with a periodic execution of the same
// schedule.
func (s *Scheduler) RunNow(ctx context.Context, scheduleID, callerID uuid.UUID) (*models.ScheduledAnalysis, error) {
	sa, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sa.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	if !sa.IsActive {
		return sa, ErrScheduleInactive
	}

	sa.EngineIDs = schedule.NormalizeEngines(sa.Engines)
	switch s.exec.Execute(ctx, sa) {
	case OutcomeSkipped:
		return sa, ErrAlreadyRunning
	case OutcomeFailed:
		return sa, ErrExecutionFailed
	}
	return sa, nil
}

// Start registers the periodic trigger. Ticks overlap-safe: a slow pass and
// the next one racing is resolved by the store guard, so no skip-if-running
// wrapper is needed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("register periodic trigger: %w", err)
	}
	c.Start()
	s.cron = c
	slog.Info("scheduler started", "interval", s.interval, "reap_timeout", s.reapTimeout)
	return nil
}

// Stop halts the periodic trigger and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}
