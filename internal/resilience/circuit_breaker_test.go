package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, cfg CircuitBreakerConfig) *CircuitBreaker {
	t.Helper()
	// Unique name per test run avoids prometheus "duplicate metrics
	// collector registration" across table-driven subtests.
	cfg.Name = cfg.Name + "-" + t.Name()
	return NewCircuitBreaker(cfg, zerolog.Nop())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	boom := errors.New("x")
	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State()) // one success, threshold is 2

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	require.Error(t, cb.Call(func() error { return errors.New("x") }))
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Call(func() error { return errors.New("still broken") }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(CircuitBreakerConfig{Name: "crm-" + t.Name()})
	r.Register(CircuitBreakerConfig{Name: "composer-" + t.Name()})

	snap := r.Snapshot()
	assert.Equal(t, "closed", snap["crm-"+t.Name()])
	assert.Equal(t, "closed", snap["composer-"+t.Name()])

	_, err := r.Get("missing-breaker")
	assert.Error(t, err)
}
