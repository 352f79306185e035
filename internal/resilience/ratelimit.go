package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the per-caller-identity token bucket applied
// to inbound control operations.
type RateLimiterConfig struct {
	// RequestsPerMinute sets the bucket's refill rate.
	RequestsPerMinute int
	// BurstSize sets the bucket's capacity.
	BurstSize int
}

func (c *RateLimiterConfig) setDefaults() {
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 60
	}
	if c.BurstSize == 0 {
		c.BurstSize = c.RequestsPerMinute
	}
}

// RateLimiter is a process-local, lock-guarded map of token buckets keyed
// by caller identity (e.g. an API key, or remote IP when none is
// supplied). It is applied to inbound control operations, never to
// outbound CRM/composer calls.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimiterConfig
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates a rate limiter with the given per-identity policy.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	cfg.setDefaults()
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the caller identified by identity may proceed, and
// consumes a token if so. The companion RetryAfter is only meaningful when
// Allow returns false.
func (rl *RateLimiter) Allow(identity string) (allowed bool, retryAfter time.Duration) {
	limiter := rl.bucketFor(identity)
	if limiter.Allow() {
		return true, 0
	}
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

func (rl *RateLimiter) bucketFor(identity string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.buckets[identity]
	if !ok {
		perSecond := float64(rl.cfg.RequestsPerMinute) / 60.0
		limiter = rate.NewLimiter(rate.Limit(perSecond), rl.cfg.BurstSize)
		rl.buckets[identity] = limiter
	}
	return limiter
}
