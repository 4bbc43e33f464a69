// Package scheduler contains the recurring-analysis core: the execution
// orchestrator and the trigger surface around it. Correctness under
// concurrent triggers is enforced at the storage layer (the run-uniqueness
// guard in CreateRun), not by in-process locking.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/internal/cache"
	"github.com/marketops/rankpulse/internal/notify"
	"github.com/marketops/rankpulse/internal/schedule"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
)

const runStatusTTL = 30 * time.Minute

// Outcome classifies one execution attempt.
type Outcome int

const (
	// OutcomeCompleted: run recorded, result stored, schedule advanced.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed: the attempt failed; the failure is recorded and the
	// schedule advanced wherever storage allowed.
	OutcomeFailed
	// OutcomeSkipped: another trigger won the run-creation race. Expected
	// under concurrent triggers, not an error.
	OutcomeSkipped
)

// Executor runs one schedule end to end: open run record, invoke the engine,
// persist the outcome, advance the schedule, notify the owner. It never
// propagates errors to the caller; every failure path ends in a recorded run
// state and/or a notification.
type Executor struct {
	store    store.Store
	engine   models.Engine
	notifier notify.Dispatcher
	cache    cache.Cache
	channel  string
	now      func() time.Time
}

func NewExecutor(st store.Store, eng models.Engine, d notify.Dispatcher, c cache.Cache, channel string) *Executor {
	return &Executor{
		store:    st,
		engine:   eng,
		notifier: d,
		cache:    c,
		channel:  channel,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute processes one execution attempt for the schedule.
func (e *Executor) Execute(ctx context.Context, s *models.ScheduledAnalysis) (outcome Outcome) {
	run, err := e.store.CreateRun(ctx, s.ID, s.NextRunAt)
	if errors.Is(err, store.ErrRunConflict) {
		slog.Debug("schedule already has a running instance, skipping",
			"schedule_id", s.ID)
		return OutcomeSkipped
	}
	if err != nil {
		slog.Error("open run record", "schedule_id", s.ID, "error", err)
		e.notify(ctx, escalationMessage(s, uuid.Nil, fmt.Sprintf("could not open run record: %v", err)))
		return OutcomeFailed
	}
	_ = e.cache.SetRunStatus(ctx, run.ID, models.RunStatusRunning, runStatusTTL)

	// A panicking engine must not leave the run dangling until the reaper
	// catches it ten minutes later.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during execution", "run_id", run.ID, "schedule_id", s.ID, "error", r)
			if err := e.store.FailRun(ctx, run.ID, fmt.Sprintf("panic: %v", r)); err != nil {
				e.escalate(ctx, s, run.ID, fmt.Sprintf("recording panic: %v", err))
			}
			outcome = OutcomeFailed
		}
	}()

	// No timeout here: engine durations vary widely by task, and the stuck-run
	// reaper is the liveness backstop.
	report, engineErr := e.engine.Analyze(ctx, models.AnalysisRequest{
		Keyword:      s.Keyword,
		AnalysisType: s.AnalysisType,
		EngineIDs:    s.EngineIDs,
		Instructions: s.Instructions,
	})

	// The schedule advances on failure exactly as on success, so a failing
	// schedule never gets stuck retrying the same slot.
	next, err := schedule.NextRun(s, e.now())
	if err != nil {
		slog.Warn("next-run computation failed, degrading to hourly cadence",
			"schedule_id", s.ID, "error", err)
		next = e.now().Add(time.Hour)
	}

	if engineErr != nil {
		return e.finishFailed(ctx, s, run, next, engineErr.Error())
	}

	result := &models.AnalysisResult{
		ID:                  uuid.New(),
		RunID:               run.ID,
		ScheduledAnalysisID: s.ID,
		Keyword:             s.Keyword,
		Provider:            e.engine.Name(),
		Model:               report.Model,
		Summary:             report.Summary,
		Insights:            report.Insights,
		CreatedAt:           e.now(),
	}
	if result.Insights == nil {
		result.Insights = []string{}
	}
	if err := e.store.CreateAnalysisResult(ctx, result); err != nil {
		return e.finishFailed(ctx, s, run, next, fmt.Sprintf("storing result: %v", err))
	}

	if err := e.store.CompleteRun(ctx, run.ID, result.ID); err != nil {
		e.escalate(ctx, s, run.ID, fmt.Sprintf("completing run: %v", err))
		return OutcomeFailed
	}
	_ = e.cache.SetRunStatus(ctx, run.ID, models.RunStatusCompleted, runStatusTTL)

	if err := e.store.AdvanceSchedule(ctx, s.ID, next); err != nil {
		e.escalate(ctx, s, run.ID, fmt.Sprintf("advancing schedule: %v", err))
		return OutcomeFailed
	}

	e.notify(ctx, successMessage(s, next))
	slog.Info("schedule executed", "schedule_id", s.ID, "run_id", run.ID,
		"keyword", s.Keyword, "next_run_at", next)
	return OutcomeCompleted
}

// finishFailed records an engine or persistence failure, advances the
// schedule, and notifies the owner.
func (e *Executor) finishFailed(ctx context.Context, s *models.ScheduledAnalysis, run *models.ScheduledRun, next time.Time, msg string) Outcome {
	if err := e.store.FailRun(ctx, run.ID, msg); err != nil {
		// Could not even record the failure; the reaper is the only backstop
		// left for this run.
		slog.Error("record run failure", "run_id", run.ID, "error", err)
		e.escalate(ctx, s, run.ID, fmt.Sprintf("recording failure: %v", err))
		return OutcomeFailed
	}
	_ = e.cache.SetRunStatus(ctx, run.ID, models.RunStatusFailed, runStatusTTL)

	if err := e.store.AdvanceSchedule(ctx, s.ID, next); err != nil {
		slog.Error("advance schedule after failure", "schedule_id", s.ID, "error", err)
		e.escalate(ctx, s, run.ID, fmt.Sprintf("advancing schedule: %v", err))
		return OutcomeFailed
	}

	e.notify(ctx, failureMessage(s, msg, next))
	slog.Warn("schedule execution failed", "schedule_id", s.ID, "run_id", run.ID,
		"keyword", s.Keyword, "error", msg)
	return OutcomeFailed
}

func (e *Executor) escalate(ctx context.Context, s *models.ScheduledAnalysis, runID uuid.UUID, reason string) {
	e.notify(ctx, escalationMessage(s, runID, reason))
}

// notify dispatches fire-and-forget; delivery failures are logged, never
// propagated into execution control flow.
func (e *Executor) notify(ctx context.Context, message string) {
	if err := e.notifier.Notify(ctx, e.channel, message); err != nil {
		slog.Error("dispatch notification", "error", err)
	}
}
