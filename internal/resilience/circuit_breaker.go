package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// CircuitState is the current state of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the tunables for one dependency's breaker.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics (e.g. "composer", "crm").
	Name string
	// FailureThreshold is the number of consecutive failures in Closed
	// state before the breaker opens.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays Open before probing again
	// in HalfOpen.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of consecutive successes in HalfOpen
	// required to close the breaker.
	SuccessThreshold int
}

func (c *CircuitBreakerConfig) setDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 60 * time.Second
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 2
	}
}

// CircuitBreaker implements the closed/open/half-open pattern for a single
// external dependency.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            CircuitState
	failureCount     int
	successCount     int
	failureThreshold int
	resetTimeout     time.Duration
	successThreshold int
	lastFailureTime  time.Time
	probeInFlight    bool
	logger           zerolog.Logger
	metrics          *circuitBreakerMetrics
}

type circuitBreakerMetrics struct {
	stateGauge prometheus.Gauge
	failures   prometheus.Counter
	successes  prometheus.Counter
	rejections prometheus.Counter
}

// NewCircuitBreaker creates a circuit breaker for one dependency.
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	cfg.setDefaults()

	cb := &CircuitBreaker{
		name:             cfg.Name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		successThreshold: cfg.SuccessThreshold,
		logger:           logger.With().Str("component", "circuit_breaker").Str("breaker", cfg.Name).Logger(),
	}

	cb.metrics = &circuitBreakerMetrics{
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "followup_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=open, 2=half_open)",
			ConstLabels: prometheus.Labels{"breaker": cfg.Name},
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "followup_circuit_breaker_failures_total",
			Help:        "Total failures recorded by the circuit breaker",
			ConstLabels: prometheus.Labels{"breaker": cfg.Name},
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "followup_circuit_breaker_successes_total",
			Help:        "Total successes recorded by the circuit breaker",
			ConstLabels: prometheus.Labels{"breaker": cfg.Name},
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "followup_circuit_breaker_rejections_total",
			Help:        "Total calls rejected while the circuit was open",
			ConstLabels: prometheus.Labels{"breaker": cfg.Name},
		}),
	}
	// Best-effort registration: a second breaker with the same name (e.g.
	// in tests constructing multiple instances) must not panic the process.
	_ = prometheus.Register(cb.metrics.stateGauge)
	_ = prometheus.Register(cb.metrics.failures)
	_ = prometheus.Register(cb.metrics.successes)
	_ = prometheus.Register(cb.metrics.rejections)

	return cb
}

// Call executes fn if the breaker allows it; Open rejects immediately with
// ErrCircuitOpen, HalfOpen allows a single probe, Closed runs normally.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.successCount = 0
		} else {
			cb.mu.Unlock()
			cb.metrics.rejections.Inc()
			return ErrCircuitOpen
		}
	case StateHalfOpen:
		if cb.probeInFlight {
			// A probe is already in flight; half-open allows exactly one
			// concurrent probe. Reject further callers until it resolves.
			cb.mu.Unlock()
			cb.metrics.rejections.Inc()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probeInFlight = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probing {
		cb.probeInFlight = false
	}

	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// State returns the breaker's current state, resolving an overdue
// Open→HalfOpen transition first.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) > cb.resetTimeout {
		cb.transitionTo(StateHalfOpen)
	}
	return cb.state
}

// Reset forces the breaker back to Closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.successCount = 0
	cb.lastFailureTime = time.Now()
	cb.metrics.failures.Inc()

	cb.logger.Warn().
		Int("consecutive_failures", cb.failureCount).
		Int("threshold", cb.failureThreshold).
		Msg("dependency call failed")

	if cb.state != StateOpen && cb.failureCount >= cb.failureThreshold {
		cb.transitionTo(StateOpen)
	} else if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.metrics.successes.Inc()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionTo(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.metrics.stateGauge.Set(float64(newState))

	cb.logger.Info().
		Str("from", old.String()).
		Str("to", newState.String()).
		Msg("circuit breaker state transition")
}

// Registry is a named collection of circuit breakers, one per external
// dependency (crm, composer).
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	logger   zerolog.Logger
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// Register creates and stores a breaker under cfg.Name.
func (r *Registry) Register(cfg CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb := NewCircuitBreaker(cfg, r.logger)
	r.breakers[cfg.Name] = cb
	return cb
}

// Get retrieves a previously registered breaker by name.
func (r *Registry) Get(name string) (*CircuitBreaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	if !ok {
		return nil, fmt.Errorf("circuit breaker %q not registered", name)
	}
	return cb, nil
}

// Snapshot returns breaker name to current state, used by the health and
// metrics handlers.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State().String()
	}
	return out
}
