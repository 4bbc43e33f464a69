package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// StuckRunError is the error message written when the reaper force-fails a
// run that sat in running state past the liveness window. The "reaped:"
// prefix distinguishes reaper timeouts from engine failures in run history.
const StuckRunError = "reaped: run exceeded liveness window without completing"

// ScheduledRun is one execution attempt of a ScheduledAnalysis. Created in
// running state when the attempt begins; terminal states are completed and
// failed. At most one run per schedule may be running at any time, enforced
// by a partial unique index in the store.
type ScheduledRun struct {
	ID                  uuid.UUID  `db:"id"                    json:"id"`
	ScheduledAnalysisID uuid.UUID  `db:"scheduled_analysis_id" json:"scheduled_analysis_id"`
	ScheduledFor        time.Time  `db:"scheduled_for"         json:"scheduled_for"`
	Status              string     `db:"status"                json:"status"`
	StartedAt           time.Time  `db:"started_at"            json:"started_at"`
	CompletedAt         *time.Time `db:"completed_at"          json:"completed_at,omitempty"`
	ResultID            *uuid.UUID `db:"result_id"             json:"result_id,omitempty"`
	ErrorMessage        *string    `db:"error_message"         json:"error_message,omitempty"`
}
