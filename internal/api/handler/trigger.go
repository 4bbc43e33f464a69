// Package handler contains the HTTP handlers for the scheduler API.
package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/marketops/rankpulse/internal/api/middleware"
	"github.com/marketops/rankpulse/internal/api/response"
	"github.com/marketops/rankpulse/internal/scheduler"
	"github.com/marketops/rankpulse/internal/store"
	"github.com/marketops/rankpulse/pkg/models"
)

// TickRunner drives one scheduling pass over the due schedules.
type TickRunner interface {
	Tick(ctx context.Context) scheduler.TickSummary
}

// ManualRunner executes a single schedule on demand for its owner.
type ManualRunner interface {
	RunNow(ctx context.Context, scheduleID, callerID uuid.UUID) (*models.ScheduledAnalysis, error)
}

// NewPollHandler returns an http.HandlerFunc for POST /api/v1/scheduler/poll.
// The poll endpoint is for external cron services and is guarded by a shared
// secret rather than a user API key.
func NewPollHandler(pollToken string, svc TickRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(pollToken)) != 1 {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid poll token", nil)
			return
		}

		summary := svc.Tick(r.Context())
		response.JSON(w, pollResponse{
			Processed: summary.Processed,
			Errors:    summary.Errors,
			Reaped:    summary.Reaped,
			Timestamp: summary.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}

type pollResponse struct {
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Reaped    int64  `json:"reaped"`
	Timestamp string `json:"timestamp"`
}

// NewRunNowHandler returns an http.HandlerFunc for POST /api/v1/schedules/{scheduleID}/run.
func NewRunNowHandler(svc ManualRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		scheduleID, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "scheduleID must be a valid UUID", nil)
			return
		}

		sa, err := svc.RunNow(r.Context(), scheduleID, userID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound,
					"SCHEDULE_NOT_FOUND", "Schedule not found", nil)
			case errors.Is(err, scheduler.ErrNotOwner):
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Schedule belongs to another user", nil)
			case errors.Is(err, scheduler.ErrScheduleInactive):
				response.Error(w, http.StatusConflict,
					"SCHEDULE_INACTIVE", "Schedule is not active", nil)
			case errors.Is(err, scheduler.ErrAlreadyRunning):
				response.Error(w, http.StatusConflict,
					"ALREADY_RUNNING", "Schedule already has a running instance", nil)
			case errors.Is(err, scheduler.ErrExecutionFailed):
				// The trigger itself succeeded; the outcome is in the run history.
				response.JSON(w, runNowResponse{
					ScheduleID: sa.ID,
					Keyword:    sa.Keyword,
					Status:     models.RunStatusFailed,
				})
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, runNowResponse{
			ScheduleID: sa.ID,
			Keyword:    sa.Keyword,
			Status:     models.RunStatusCompleted,
		})
	}
}

type runNowResponse struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Keyword    string    `json:"keyword"`
	Status     string    `json:"status"`
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
