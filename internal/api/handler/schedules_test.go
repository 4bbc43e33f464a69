package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marketops/rankpulse/internal/api/handler"
	mw "github.com/marketops/rankpulse/internal/api/middleware"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockScheduleReader struct {
	schedule *models.ScheduledAnalysis
	runs     []*models.ScheduledRun
	total    int
	err      error

	gotFilter store.RunFilter
}

func (m *mockScheduleReader) GetSchedule(_ context.Context, id uuid.UUID) (*models.ScheduledAnalysis, error) {
	if m.schedule == nil || m.schedule.ID != id {
		return nil, store.ErrNotFound
	}
	cp := *m.schedule
	return &cp, nil
}

func (m *mockScheduleReader) ListRuns(_ context.Context, _ uuid.UUID, filter store.RunFilter) ([]*models.ScheduledRun, int, error) {
	m.gotFilter = filter
	return m.runs, m.total, m.err
}

func getRequest(t *testing.T, pattern, path string, h http.HandlerFunc, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get(pattern, h)

	req := httptest.NewRequest("GET", path, nil)
	req = req.WithContext(mw.SetUserID(req.Context(), userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ownedTestSchedule(userID uuid.UUID) *models.ScheduledAnalysis {
	return &models.ScheduledAnalysis{
		ID:           uuid.New(),
		OwnerID:      userID,
		OwnerName:    "Dana",
		Keyword:      "standing desk",
		AnalysisType: "serp",
		Engines:      `["serp","ai"]`,
		Frequency:    models.FrequencyDaily,
		TimeOfDay:    "09:00",
		Timezone:     "UTC",
		IsActive:     true,
		NextRunAt:    time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
}

// --- GetSchedule Tests ---

func TestGetSchedule_OK(t *testing.T) {
	userID := uuid.New()
	sa := ownedTestSchedule(userID)
	h := handler.NewGetScheduleHandler(&mockScheduleReader{schedule: sa})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}",
		"/api/v1/schedules/"+sa.ID.String(), h, userID)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, sa.ID.String(), data["id"])
	assert.Equal(t, "standing desk", data["keyword"])

	// Engines come back normalized regardless of the stored legacy shape.
	engines, ok := data["engines"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"serp", "ai"}, engines)
}

func TestGetSchedule_NotFound(t *testing.T) {
	h := handler.NewGetScheduleHandler(&mockScheduleReader{})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}",
		"/api/v1/schedules/"+uuid.NewString(), h, uuid.New())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SCHEDULE_NOT_FOUND", decodeError(t, w)["code"])
}

func TestGetSchedule_ForeignOwnerReadsAsNotFound(t *testing.T) {
	sa := ownedTestSchedule(uuid.New())
	h := handler.NewGetScheduleHandler(&mockScheduleReader{schedule: sa})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}",
		"/api/v1/schedules/"+sa.ID.String(), h, uuid.New())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SCHEDULE_NOT_FOUND", decodeError(t, w)["code"])
}

func TestGetSchedule_InvalidID(t *testing.T) {
	h := handler.NewGetScheduleHandler(&mockScheduleReader{})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}",
		"/api/v1/schedules/nope", h, uuid.New())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- ListRuns Tests ---

func TestListRuns_OK(t *testing.T) {
	userID := uuid.New()
	sa := ownedTestSchedule(userID)
	completed := time.Now().UTC()
	reader := &mockScheduleReader{
		schedule: sa,
		runs: []*models.ScheduledRun{{
			ID:                  uuid.New(),
			ScheduledAnalysisID: sa.ID,
			ScheduledFor:        sa.NextRunAt,
			Status:              models.RunStatusCompleted,
			StartedAt:           completed.Add(-time.Minute),
			CompletedAt:         &completed,
		}},
		total: 41,
	}
	h := handler.NewListRunsHandler(reader)

	w := getRequest(t, "/api/v1/schedules/{scheduleID}/runs",
		"/api/v1/schedules/"+sa.ID.String()+"/runs?page=2&limit=20", h, userID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, reader.gotFilter.Page)
	assert.Equal(t, 20, reader.gotFilter.Limit)

	var body struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, models.RunStatusCompleted, body.Data[0]["status"])
	assert.Equal(t, 41, body.Meta.Total)
	assert.True(t, body.Meta.HasNext)
}

func TestListRuns_StatusFilter(t *testing.T) {
	userID := uuid.New()
	sa := ownedTestSchedule(userID)
	reader := &mockScheduleReader{schedule: sa}
	h := handler.NewListRunsHandler(reader)

	w := getRequest(t, "/api/v1/schedules/{scheduleID}/runs",
		"/api/v1/schedules/"+sa.ID.String()+"/runs?status=failed", h, userID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RunStatusFailed, reader.gotFilter.Status)
}

func TestListRuns_InvalidStatus(t *testing.T) {
	userID := uuid.New()
	sa := ownedTestSchedule(userID)
	h := handler.NewListRunsHandler(&mockScheduleReader{schedule: sa})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}/runs",
		"/api/v1/schedules/"+sa.ID.String()+"/runs?status=bogus", h, userID)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w)["code"])
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	userID := uuid.New()
	sa := ownedTestSchedule(userID)
	h := handler.NewListRunsHandler(&mockScheduleReader{schedule: sa})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}/runs",
		"/api/v1/schedules/"+sa.ID.String()+"/runs", h, userID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestListRuns_ForeignOwner(t *testing.T) {
	sa := ownedTestSchedule(uuid.New())
	h := handler.NewListRunsHandler(&mockScheduleReader{schedule: sa})

	w := getRequest(t, "/api/v1/schedules/{scheduleID}/runs",
		"/api/v1/schedules/"+sa.ID.String()+"/runs", h, uuid.New())

	assert.Equal(t, http.StatusNotFound, w.Code)
}
