package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult holds engine-generated output for one completed run.
type AnalysisResult struct {
	ID                  uuid.UUID `db:"id"                    json:"id"`
	RunID               uuid.UUID `db:"run_id"                json:"run_id"`
	ScheduledAnalysisID uuid.UUID `db:"scheduled_analysis_id" json:"scheduled_analysis_id"`
	Keyword             string    `db:"keyword"               json:"keyword"`
	Provider            string    `db:"provider"              json:"provider"`
	Model               string    `db:"model"                 json:"model"`
	Summary             string    `db:"summary"               json:"summary"`
	Insights            []string  `db:"insights"              json:"insights"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
}
