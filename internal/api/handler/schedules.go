package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/marketops/rankpulse/internal/api/middleware"
	"github.com/marketops/rankpulse/internal/api/response"
	"github.com/marketops/rankpulse/internal/schedule"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
)

// ScheduleReader is the read-side store surface the schedule handlers need.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduledAnalysis, error)
	ListRuns(ctx context.Context, scheduleID uuid.UUID, filter store.RunFilter) ([]*models.ScheduledRun, int, error)
}

// NewGetScheduleHandler returns an http.HandlerFunc for GET /api/v1/schedules/{scheduleID}.
func NewGetScheduleHandler(s ScheduleReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sa, ok := ownedSchedule(w, r, s)
		if !ok {
			return
		}
		sa.EngineIDs = schedule.NormalizeEngines(sa.Engines)
		response.JSON(w, sa)
	}
}

// NewListRunsHandler returns an http.HandlerFunc for GET /api/v1/schedules/{scheduleID}/runs.
func NewListRunsHandler(s ScheduleReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sa, ok := ownedSchedule(w, r, s)
		if !ok {
			return
		}

		filter := store.RunFilter{
			Status: r.URL.Query().Get("status"),
			Page:   queryInt(r, "page", 1),
			Limit:  queryInt(r, "limit", 20),
		}
		switch filter.Status {
		case "", models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
		default:
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "status must be one of running, completed, failed", nil)
			return
		}

		runs, total, err := s.ListRuns(r.Context(), sa.ID, filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if runs == nil {
			runs = []*models.ScheduledRun{}
		}

		response.Collection(w, runs, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// ownedSchedule loads the schedule from the URL and verifies the caller owns
// it. Foreign schedules read as not found so ownership is not leaked.
func ownedSchedule(w http.ResponseWriter, r *http.Request, s ScheduleReader) (*models.ScheduledAnalysis, bool) {
	userID, ok := mw.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
		return nil, false
	}

	scheduleID, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "scheduleID must be a valid UUID", nil)
		return nil, false
	}

	sa, err := s.GetSchedule(r.Context(), scheduleID)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "SCHEDULE_NOT_FOUND", "Schedule not found", nil)
		return nil, false
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "An unexpected error occurred", nil)
		return nil, false
	}
	if sa.OwnerID != userID {
		response.Error(w, http.StatusNotFound, "SCHEDULE_NOT_FOUND", "Schedule not found", nil)
		return nil, false
	}
	return sa, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
