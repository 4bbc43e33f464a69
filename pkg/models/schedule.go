// Package models contains shared data models used across the rankpulse codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Frequency rules for a scheduled analysis.
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ScheduledAnalysis is a user-defined recurring analysis task. The scheduler
// selects active schedules whose next_run_at has passed, runs them through the
// analysis engine, and advances next_run_at according to the frequency rule.
type ScheduledAnalysis struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	OwnerID   uuid.UUID `db:"owner_id"   json:"owner_id"`
	OwnerName string    `db:"owner_name" json:"owner_name"`

	Keyword      string `db:"keyword"       json:"keyword"`
	AnalysisType string `db:"analysis_type" json:"analysis_type"`
	// Engines is the raw stored value; historical rows hold a JSON array, a
	// comma-delimited string, or a single bare identifier. EngineIDs carries
	// the normalized form and is populated at the selection boundary.
	Engines      string   `db:"engines"      json:"-"`
	EngineIDs    []string `db:"-"            json:"engines"`
	Instructions string   `db:"instructions" json:"instructions,omitempty"`

	Frequency  string `db:"frequency"    json:"frequency"`
	DayOfWeek  int    `db:"day_of_week"  json:"day_of_week"`
	DayOfMonth int    `db:"day_of_month" json:"day_of_month"`
	TimeOfDay  string `db:"time_of_day"  json:"time_of_day"` // "HH:MM"
	Timezone   string `db:"timezone"     json:"timezone"`    // IANA name

	IsActive  bool       `db:"is_active"   json:"is_active"`
	LastRunAt *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt time.Time  `db:"next_run_at" json:"next_run_at"`
	RunCount  int        `db:"run_count"   json:"run_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
