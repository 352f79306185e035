package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wardrockay/followup-engine/internal/resilience"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// storePinger is the subset of dynamostore.Store the health checker needs.
type storePinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports on the store and the circuit breakers guarding the
// CRM and composer dependencies.
type HealthChecker struct {
	store     storePinger
	breakers  *resilience.Registry
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. store may be nil in tests.
func NewHealthChecker(store storePinger, breakers *resilience.Registry) *HealthChecker {
	return &HealthChecker{
		store:     store,
		breakers:  breakers,
		startTime: time.Now(),
	}
}

const healthVersion = "1.0.0"

// HandleHealth returns the comprehensive health status of all components.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	respondJSON(w, http.StatusOK, HealthStatus{
		Status:  overall,
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness is a liveness probe — 200 if the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness checks the store and returns 503 if it is unreachable.
// A circuit breaker being open does not fail readiness — the service is
// still able to accept control requests, it will just fail fast on calls
// to the open dependency.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	ready := true
	if store, ok := checks["store"]; ok && store.Status == "down" {
		ready = false
	}

	httpStatus := http.StatusOK
	if !ready {
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, httpStatus, map[string]interface{}{
		"ready":  ready,
		"status": determineOverallStatus(checks),
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := map[string]ComponentCheck{
		"store": hc.checkStore(ctx),
	}
	for name, state := range hc.breakerStates() {
		checks[name] = breakerCheck(state)
	}
	return checks
}

// checkStore pings the store with a 3-second timeout.
func (hc *HealthChecker) checkStore(ctx context.Context) ComponentCheck {
	if hc.store == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.store.Ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}

	status := "up"
	msg := "connected"
	if latency > 1*time.Second {
		status = "degraded"
		msg = fmt.Sprintf("slow response (%s)", latency)
	}

	return ComponentCheck{Status: status, Latency: latency.String(), Message: msg}
}

func (hc *HealthChecker) breakerStates() map[string]string {
	if hc.breakers == nil {
		return nil
	}
	return hc.breakers.Snapshot()
}

// breakerCheck translates a circuit breaker state string into a
// ComponentCheck: open breakers are degraded, not down — the engine keeps
// serving control requests while one dependency is failing.
func breakerCheck(state string) ComponentCheck {
	switch state {
	case "open":
		return ComponentCheck{Status: "degraded", Message: "circuit open"}
	case "half_open":
		return ComponentCheck{Status: "degraded", Message: "circuit half-open, probing"}
	default:
		return ComponentCheck{Status: "up", Message: "circuit closed"}
	}
}

// determineOverallStatus derives the aggregate status from individual
// checks. The store is the only hard dependency; breaker degradation never
// pulls the overall status below "degraded".
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if store, ok := checks["store"]; ok && store.Status == "down" && store.Message != "not configured" {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}

	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
