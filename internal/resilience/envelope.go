package resilience

import (
	"context"
	"time"
)

// DependencyConfig bundles the retry, circuit breaker, and timeout policy
// for one outbound dependency.
type DependencyConfig struct {
	Name              string
	Timeout           time.Duration
	RetryableStatuses map[int]struct{}
	Retry             RetryConfig
	Breaker           CircuitBreakerConfig
}

func statusSet(codes ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// ComposerDependencyConfig returns the resilience policy for the mail
// composer collaborator: up to 2 retries, 1.0s exponential backoff,
// retrying only {502, 503, 504}; failure threshold 3, 60s open timeout,
// success threshold 2 to close from half-open.
func ComposerDependencyConfig() DependencyConfig {
	return DependencyConfig{
		Name:              "composer",
		Timeout:           60 * time.Second,
		RetryableStatuses: statusSet(502, 503, 504),
		Retry: RetryConfig{
			MaxAttempts:   3, // first attempt + 2 retries
			InitialDelay:  1 * time.Second,
			Multiplier:    2.0,
			OperationName: "composer.generate_followup",
		},
		Breaker: CircuitBreakerConfig{
			Name:             "composer",
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
			SuccessThreshold: 2,
		},
	}
}

// CRMDependencyConfig returns the resilience policy for the CRM
// collaborator: up to 3 retries, 0.5s exponential backoff, retrying on
// {429, 500, 502, 503, 504}.
func CRMDependencyConfig() DependencyConfig {
	return DependencyConfig{
		Name:              "crm",
		Timeout:           15 * time.Second,
		RetryableStatuses: statusSet(429, 500, 502, 503, 504),
		Retry: RetryConfig{
			MaxAttempts:   4, // first attempt + 3 retries
			InitialDelay:  500 * time.Millisecond,
			Multiplier:    2.0,
			OperationName: "crm.lookup_prospect",
		},
		Breaker: CircuitBreakerConfig{
			Name:             "crm",
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
			SuccessThreshold: 2,
		},
	}
}

// IsRetryableStatus reports whether status is in cfg's retryable set.
func (c DependencyConfig) IsRetryableStatus(status int) bool {
	_, ok := c.RetryableStatuses[status]
	return ok
}

// Envelope combines a circuit breaker and retry policy for one dependency,
// so callers get one Execute method instead of wiring both by hand.
type Envelope struct {
	cfg     DependencyConfig
	breaker *CircuitBreaker
}

// NewEnvelope builds an Envelope, registering its breaker in registry under
// cfg.Breaker.Name so health checks can read it back via Snapshot.
func NewEnvelope(cfg DependencyConfig, registry *Registry) *Envelope {
	breaker := registry.Register(cfg.Breaker)
	return &Envelope{cfg: cfg, breaker: breaker}
}

// Execute runs fn under cfg.Timeout, retrying per cfg.Retry and gating
// every attempt through the circuit breaker. If the breaker is open, fn is
// never called and ErrCircuitOpen is returned immediately.
func (e *Envelope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	retryCfg := e.cfg.Retry
	return RetryWithBackoff(ctx, retryCfg, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return e.breaker.Call(func() error {
			return fn(callCtx)
		})
	})
}

// BreakerState reports the current circuit state, for health checks.
func (e *Envelope) BreakerState() CircuitState {
	return e.breaker.State()
}
