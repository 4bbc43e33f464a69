package models

import (
	"context"
	"time"
)

// Engine is the interface every analysis engine integration must implement.
// Never call a specific provider directly — always inject this interface.
// Providers own their upstream timeout and retry policy; the scheduler
// imposes no timeout of its own around Analyze.
type Engine interface {
	// Analyze runs one analysis for a schedule's parameters.
	Analyze(ctx context.Context, req AnalysisRequest) (Report, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// AnalysisRequest is the input to an engine analysis. The task parameters are
// passed through from the schedule unmodified.
type AnalysisRequest struct {
	Keyword      string
	AnalysisType string
	EngineIDs    []string
	Instructions string
}

// Report is the raw engine output before it is persisted as an AnalysisResult.
type Report struct {
	Model       string
	Summary     string
	Insights    []string
	GeneratedAt time.Time
}
