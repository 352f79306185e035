package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerIdentityBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 2})

	allowed, _ := rl.Allow("caller-a")
	assert.True(t, allowed)
	allowed, _ = rl.Allow("caller-a")
	assert.True(t, allowed)

	allowed, retryAfter := rl.Allow("caller-a")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter.Milliseconds(), int64(0))

	// A different identity has its own independent bucket.
	allowed, _ = rl.Allow("caller-b")
	assert.True(t, allowed)
}
