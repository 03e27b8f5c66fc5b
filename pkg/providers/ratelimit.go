package providers

import (
	"sync"
	"time"
)

// tokenBucket throttles a provider's outbound calls client-side.
//
// Tokens refill at a constant rate up to a burst capacity; each call
// consumes one token. A failed take reports how long until a token
// becomes available so the caller can surface a RetryAfter hint.
//
// Uses monotonic time so clock adjustments do not distort refill.
type tokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex

	nowFunc func() time.Time
}

// newTokenBucket builds a bucket from rate limit settings. The bucket
// starts full so a provider can burst immediately after startup.
func newTokenBucket(limits RateLimits) *tokenBucket {
	burst := limits.Burst
	if burst <= 0 {
		burst = limits.RequestsPerMinute
	}
	return &tokenBucket{
		capacity:   int64(burst),
		tokens:     int64(burst),
		refillRate: float64(limits.RequestsPerMinute) / 60.0,
		lastRefill: time.Now(),
		nowFunc:    time.Now,
	}
}

// take attempts to consume one token. On failure it returns the wait
// until a token will be available.
func (tb *tokenBucket) take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}

	seconds := (1 - float64(tb.tokens)) / tb.refillRate
	return false, time.Duration(seconds * float64(time.Second))
}

// refillLocked adds tokens based on elapsed time. Caller must hold mu.
func (tb *tokenBucket) refillLocked() {
	now := tb.nowFunc()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int64(elapsed.Seconds() * tb.refillRate)
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}
