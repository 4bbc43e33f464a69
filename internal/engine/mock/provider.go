package mock

import (
	"context"
	"time"

	"github.com/marketops/rankpulse/internal/engine"
	"github.com/marketops/rankpulse/pkg/models"
)

// MockEngine satisfies models.Engine for testing and local development.
type MockEngine struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.AnalysisRequest) (models.Report, error)
}

func (m *MockEngine) Name() string { return m.Name_ }

func (m *MockEngine) Analyze(ctx context.Context, req models.AnalysisRequest) (models.Report, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.Report{}, nil
}

// NewProvider returns a MockEngine with sensible default responses.
func NewProvider() *MockEngine {
	return &MockEngine{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, req models.AnalysisRequest) (models.Report, error) {
			return models.Report{
				Model:   "mock-v1",
				Summary: "Mock analysis summary for keyword " + req.Keyword,
				Insights: []string{
					"Search interest is stable week over week",
					"Top competitor coverage is thin for this keyword",
				},
				GeneratedAt: time.Now().UTC(),
			}, nil
		},
	}
}

// NewFailingProvider returns a MockEngine that always returns the given error.
func NewFailingProvider(err error) *MockEngine {
	return &MockEngine{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (models.Report, error) {
			return models.Report{}, err
		},
	}
}

// NewTimeoutProvider returns a MockEngine that blocks until context is cancelled.
func NewTimeoutProvider() *MockEngine {
	return &MockEngine{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisRequest) (models.Report, error) {
			<-ctx.Done()
			return models.Report{}, engine.ErrEngineTimeout
		},
	}
}

var _ models.Engine = (*MockEngine)(nil)
