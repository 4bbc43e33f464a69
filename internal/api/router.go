// Package api wires the HTTP surface of the scheduler service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/marketops/rankpulse/internal/api/middleware"
	"github.com/marketops/rankpulse/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	PollHandler        http.HandlerFunc
	RunNowHandler      http.HandlerFunc
	GetScheduleHandler http.HandlerFunc
	ListRunsHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// External cron poll; guarded by a shared secret inside the handler, not
	// by user API keys.
	r.Post("/api/v1/scheduler/poll", orNotImplemented(deps.PollHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/schedules/{scheduleID}", orNotImplemented(deps.GetScheduleHandler))
		r.Get("/api/v1/schedules/{scheduleID}/runs", orNotImplemented(deps.ListRunsHandler))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("trigger"))

			r.Post("/api/v1/schedules/{scheduleID}/run", orNotImplemented(deps.RunNowHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
