package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wardrockay/followup-engine/internal/resilience"
)

// SetupRoutes configures the followup engine's HTTP surface: the nine
// control endpoints of spec §6.1, health probes, and /metrics.
func SetupRoutes(h *Handlers, hc *HealthChecker, limiter *resilience.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(rateLimitMiddleware(limiter))
		}

		r.Post("/schedule-followups", h.HandleScheduleFollowups)
		r.Post("/schedule-missing-followups", h.HandleScheduleMissingFollowups)
		r.Post("/cancel-followups", h.HandleCancelFollowups)
		r.Post("/process-pending-followups", h.HandleProcessPendingFollowups)
		r.Post("/retry-failed-followups", h.HandleRetryFailedFollowups)
		r.Post("/sync-followup-ids", h.HandleSyncFollowupIDs)
		r.Post("/set-missing-scheduled-flag", h.HandleSetMissingScheduledFlag)
		r.Post("/shift-followups", h.HandleShiftFollowup)
		r.Post("/mark-followups-done", h.HandleMarkFollowupsDone)
	})

	return r
}

// rateLimitMiddleware applies limiter's per-identity token bucket to every
// wrapped route, keyed on the X-API-Key header, or on the caller's remote
// address (set by middleware.RealIP upstream) when no key is sent. A caller without tokens gets 429 with a
// Retry-After header rather than a bare rejection.
func rateLimitMiddleware(limiter *resilience.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			identity := req.Header.Get("X-API-Key")
			if identity == "" {
				identity = req.RemoteAddr
			}

			allowed, retryAfter := limiter.Allow(identity)
			if !allowed {
				seconds := int(retryAfter / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				respondJSON(w, http.StatusTooManyRequests, envelope{
					Success: false,
					Error:   "rate limit exceeded",
					ErrType: "rate_limit_exceeded",
				})
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
