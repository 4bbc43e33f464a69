package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/internal/cache"
	"github.com/marketops/rankpulse/internal/config"
	"github.com/marketops/rankpulse/internal/engine/mock"
	"github.com/marketops/rankpulse/internal/scheduler"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:     true,
		Interval:    time.Minute,
		ReapTimeout: 10 * time.Minute,
		Parallelism: 4,
		PollToken:   "poll-secret",
	}
}

func newTestScheduler(st *fakeStore, eng models.Engine, disp *recorderDispatcher, c *fakeCache) *scheduler.Scheduler {
	exec := scheduler.NewExecutor(st, eng, disp, c, "#ops")
	return scheduler.New(st, exec, c, schedulerConfig())
}

func TestTick_ProcessesAllDueSchedules(t *testing.T) {
	st := newFakeStore()
	disp := &recorderDispatcher{}
	c := newFakeCache()
	sched := newTestScheduler(st, mock.NewProvider(), disp, c)

	s1 := testSchedule()
	s2 := testSchedule()
	s2.Keyword = "ergonomic chair"
	st.addSchedule(s1)
	st.addSchedule(s2)

	notDue := testSchedule()
	notDue.NextRunAt = time.Now().UTC().Add(time.Hour)
	st.addSchedule(notDue)

	inactive := testSchedule()
	inactive.IsActive = false
	st.addSchedule(inactive)

	summary := sched.Tick(context.Background())
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Errors)

	assert.Len(t, st.runsFor(s1.ID), 1)
	assert.Len(t, st.runsFor(s2.ID), 1)
	assert.Empty(t, st.runsFor(notDue.ID))
	assert.Empty(t, st.runsFor(inactive.ID))
}

func TestTick_CountsFailures(t *testing.T) {
	st := newFakeStore()
	disp := &recorderDispatcher{}
	sched := newTestScheduler(st, mock.NewFailingProvider(errors.New("engine down")), disp, newFakeCache())

	st.addSchedule(testSchedule())
	st.addSchedule(testSchedule())

	summary := sched.Tick(context.Background())
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Errors)
}

func TestTick_ReapsBeforeSelecting(t *testing.T) {
	st := newFakeStore()
	disp := &recorderDispatcher{}
	sched := newTestScheduler(st, mock.NewProvider(), disp, newFakeCache())

	s := testSchedule()
	st.addSchedule(s)

	// A run stuck for 11 minutes blocks the schedule until the reaper clears it.
	stuck, err := st.CreateRun(context.Background(), s.ID, s.NextRunAt)
	require.NoError(t, err)
	st.mu.Lock()
	st.runs[stuck.ID].StartedAt = time.Now().UTC().Add(-11 * time.Minute)
	st.mu.Unlock()

	summary := sched.Tick(context.Background())
	assert.Equal(t, int64(1), summary.Reaped)
	assert.Equal(t, 1, summary.Processed)

	runs := st.runsFor(s.ID)
	require.Len(t, runs, 2)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Equal(t, models.StuckRunError, *runs[0].ErrorMessage)
	assert.Equal(t, models.RunStatusCompleted, runs[1].Status)
}

func TestTick_YoungRunningRunIsNotReaped(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	st.addSchedule(s)
	_, err := st.CreateRun(context.Background(), s.ID, s.NextRunAt)
	require.NoError(t, err)

	summary := sched.Tick(context.Background())
	assert.Equal(t, int64(0), summary.Reaped)
	// The schedule is excluded while its run is in flight.
	assert.Equal(t, 0, summary.Processed)

	runs := st.runsFor(s.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusRunning, runs[0].Status)
}

func TestTick_NormalizesLegacyEngineShapes(t *testing.T) {
	st := newFakeStore()
	var mu sync.Mutex
	var got [][]string
	capture := &mock.MockEngine{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, req models.AnalysisRequest) (models.Report, error) {
			mu.Lock()
			got = append(got, req.EngineIDs)
			mu.Unlock()
			return models.Report{Model: "mock-v1", Summary: "ok"}, nil
		},
	}
	sched := newTestScheduler(st, capture, &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	s.Engines = `["serp","ai"]`
	s.EngineIDs = nil
	st.addSchedule(s)

	summary := sched.Tick(context.Background())
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"serp", "ai"}, got[0])
}

func TestTick_StoresLastTickSummary(t *testing.T) {
	st := newFakeStore()
	c := newFakeCache()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, c)
	st.addSchedule(testSchedule())

	summary := sched.Tick(context.Background())

	raw, ok, err := c.Get(context.Background(), cache.LastTickKey)
	require.NoError(t, err)
	require.True(t, ok)
	var cached scheduler.TickSummary
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, summary.Processed, cached.Processed)
}

func TestRunNow_Success(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	s.NextRunAt = time.Now().UTC().Add(time.Hour) // not due; manual bypasses the due check
	st.addSchedule(s)

	got, err := sched.RunNow(context.Background(), s.ID, s.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, "standing desk", got.Keyword)
	assert.Len(t, st.runsFor(s.ID), 1)
}

func TestRunNow_NotFound(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	_, err := sched.RunNow(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunNow_WrongOwner(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	st.addSchedule(s)

	_, err := sched.RunNow(context.Background(), s.ID, uuid.New())
	assert.ErrorIs(t, err, scheduler.ErrNotOwner)
	assert.Empty(t, st.runsFor(s.ID))
}

func TestRunNow_Inactive(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	s.IsActive = false
	st.addSchedule(s)

	_, err := sched.RunNow(context.Background(), s.ID, s.OwnerID)
	assert.ErrorIs(t, err, scheduler.ErrScheduleInactive)
}

func TestRunNow_ExecutionFailureIsDistinct(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewFailingProvider(errors.New("engine down")), &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	st.addSchedule(s)

	got, err := sched.RunNow(context.Background(), s.ID, s.OwnerID)
	assert.ErrorIs(t, err, scheduler.ErrExecutionFailed)
	require.NotNil(t, got)
	assert.Equal(t, "standing desk", got.Keyword)
}

// Two simultaneous manual triggers for the same schedule: exactly one run is
// created, the other observes the conflict, and run_count increments once.
func TestRunNow_ConcurrentTriggersCreateOneRun(t *testing.T) {
	st := newFakeStore()
	slow := &mock.MockEngine{
		Name_: "mock-slow",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (models.Report, error) {
			time.Sleep(50 * time.Millisecond)
			return models.Report{Model: "mock-v1", Summary: "ok"}, nil
		},
	}
	sched := newTestScheduler(st, slow, &recorderDispatcher{}, newFakeCache())

	s := testSchedule()
	st.addSchedule(s)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := sched.RunNow(context.Background(), s.ID, s.OwnerID)
			errs <- err
		}()
	}
	err1, err2 := <-errs, <-errs

	if err1 == nil {
		assert.ErrorIs(t, err2, scheduler.ErrAlreadyRunning)
	} else {
		assert.ErrorIs(t, err1, scheduler.ErrAlreadyRunning)
		assert.NoError(t, err2)
	}

	assert.Len(t, st.runsFor(s.ID), 1)
	stored, err := st.GetSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RunCount)
}

func TestStartStop(t *testing.T) {
	st := newFakeStore()
	sched := newTestScheduler(st, mock.NewProvider(), &recorderDispatcher{}, newFakeCache())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sched.Start(ctx))
	assert.Error(t, sched.Start(ctx), "double start must be rejected")
	sched.Stop()
	sched.Stop() // idempotent
}
