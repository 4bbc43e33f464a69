package scheduler_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
)

// --- fakes ---

type fakeStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*models.ScheduledAnalysis
	runs      map[uuid.UUID]*models.ScheduledRun
	results   []*models.AnalysisResult
	reapCalls []time.Time

	createRunErr    error
	completeRunErr  error
	failRunErr      error
	createResultErr error
	advanceErr      error
	listErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schedules: make(map[uuid.UUID]*models.ScheduledAnalysis),
		runs:      make(map[uuid.UUID]*models.ScheduledRun),
	}
}

func (f *fakeStore) addSchedule(s *models.ScheduledAnalysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.schedules[s.ID] = &cp
}

func (f *fakeStore) runsFor(scheduleID uuid.UUID) []*models.ScheduledRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ScheduledRun
	for _, r := range f.runs {
		if r.ScheduledAnalysisID == scheduleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (f *fakeStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeStore) GetSchedule(_ context.Context, id uuid.UUID) (*models.ScheduledAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListDueSchedules(_ context.Context, now time.Time) ([]*models.ScheduledAnalysis, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*models.ScheduledAnalysis
	for _, s := range f.schedules {
		if !s.IsActive || s.NextRunAt.After(now) {
			continue
		}
		if f.hasRunningLocked(s.ID) {
			continue
		}
		cp := *s
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	return due, nil
}

func (f *fakeStore) AdvanceSchedule(_ context.Context, scheduleID uuid.UUID, nextRunAt time.Time) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[scheduleID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	s.LastRunAt = &now
	s.NextRunAt = nextRunAt
	s.RunCount++
	return nil
}

func (f *fakeStore) hasRunningLocked(scheduleID uuid.UUID) bool {
	for _, r := range f.runs {
		if r.ScheduledAnalysisID == scheduleID && r.Status == models.RunStatusRunning {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateRun(_ context.Context, scheduleID uuid.UUID, scheduledFor time.Time) (*models.ScheduledRun, error) {
	if f.createRunErr != nil {
		return nil, f.createRunErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasRunningLocked(scheduleID) {
		return nil, store.ErrRunConflict
	}
	run := &models.ScheduledRun{
		ID:                  uuid.New(),
		ScheduledAnalysisID: scheduleID,
		ScheduledFor:        scheduledFor,
		Status:              models.RunStatusRunning,
		StartedAt:           time.Now().UTC(),
	}
	f.runs[run.ID] = run
	cp := *run
	return &cp, nil
}

func (f *fakeStore) CompleteRun(_ context.Context, runID uuid.UUID, resultID uuid.UUID) error {
	if f.completeRunErr != nil {
		return f.completeRunErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok || r.Status != models.RunStatusRunning {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = models.RunStatusCompleted
	r.ResultID = &resultID
	r.CompletedAt = &now
	return nil
}

func (f *fakeStore) FailRun(_ context.Context, runID uuid.UUID, errorMessage string) error {
	if f.failRunErr != nil {
		return f.failRunErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok || r.Status != models.RunStatusRunning {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = models.RunStatusFailed
	r.ErrorMessage = &errorMessage
	r.CompletedAt = &now
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*models.ScheduledRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRuns(_ context.Context, scheduleID uuid.UUID, _ store.RunFilter) ([]*models.ScheduledRun, int, error) {
	runs := f.runsFor(scheduleID)
	return runs, len(runs), nil
}

func (f *fakeStore) ReapStaleRuns(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapCalls = append(f.reapCalls, olderThan)
	var count int64
	for _, r := range f.runs {
		if r.Status == models.RunStatusRunning && r.StartedAt.Before(olderThan) {
			now := time.Now().UTC()
			msg := models.StuckRunError
			r.Status = models.RunStatusFailed
			r.ErrorMessage = &msg
			r.CompletedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateAnalysisResult(_ context.Context, result *models.AnalysisResult) error {
	if f.createResultErr != nil {
		return f.createResultErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *result
	f.results = append(f.results, &cp)
	return nil
}

func (f *fakeStore) GetAnalysisResult(_ context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

var _ store.Store = (*fakeStore)(nil)

type fakeCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
	entries  map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		statuses: make(map[uuid.UUID]string),
		entries:  make(map[string][]byte),
	}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }

func (c *fakeCache) SetRunStatus(_ context.Context, runID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[runID] = status
	return nil
}

func (c *fakeCache) GetRunStatus(_ context.Context, runID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[runID]
	return s, ok, nil
}

func (c *fakeCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

type recorderDispatcher struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (d *recorderDispatcher) Notify(_ context.Context, _ string, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	return d.err
}

func (d *recorderDispatcher) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...)
}

// errNotRecorded marks store operations forced to fail in tests.
var errStoreDown = errors.New("storage unavailable")
