package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrRunConflict is returned by CreateRun when the schedule already has a run
// in running state. This is the expected outcome when concurrent triggers race
// for the same schedule; callers skip silently.
var ErrRunConflict = errors.New("schedule already has a running instance")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduledAnalysis, error)
	// ListDueSchedules returns active schedules with next_run_at <= now and no
	// run currently in running state, ordered oldest-due first.
	ListDueSchedules(ctx context.Context, now time.Time) ([]*models.ScheduledAnalysis, error)
	// AdvanceSchedule sets last_run_at to now, moves next_run_at forward, and
	// increments run_count, all in a single statement.
	AdvanceSchedule(ctx context.Context, scheduleID uuid.UUID, nextRunAt time.Time) error

	// CreateRun opens a run record for the schedule. Returns ErrRunConflict if
	// a run is already in running state (the compare-and-create guard).
	CreateRun(ctx context.Context, scheduleID uuid.UUID, scheduledFor time.Time) (*models.ScheduledRun, error)
	CompleteRun(ctx context.Context, runID uuid.UUID, resultID uuid.UUID) error
	FailRun(ctx context.Context, runID uuid.UUID, errorMessage string) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.ScheduledRun, error)
	ListRuns(ctx context.Context, scheduleID uuid.UUID, filter RunFilter) ([]*models.ScheduledRun, int, error)
	// ReapStaleRuns force-fails runs still in running state that started
	// before olderThan. Returns the number of runs transitioned.
	ReapStaleRuns(ctx context.Context, olderThan time.Time) (int64, error)

	CreateAnalysisResult(ctx context.Context, result *models.AnalysisResult) error
	GetAnalysisResult(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error)
}

type RunFilter struct {
	Status string
	Page   int
	Limit  int
}
