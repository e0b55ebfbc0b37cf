package common

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound calls to a provider API. Limits can be
// retuned at runtime when a provider publishes new quota headers.
type RateLimiter struct {
	limiter *rate.Limiter
	// The limiter itself is safe for concurrent use; the lock makes the
	// limit+burst pair in UpdateLimits swap atomically.
	mu sync.RWMutex
}

// NewRateLimiter returns a limiter allowing rps sustained requests per second
// with the given burst headroom.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the limiter admits one request or ctx is canceled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.limiter.Wait(ctx)
}

// UpdateLimits replaces the sustained rate and burst size in one step.
func (rl *RateLimiter) UpdateLimits(rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter.SetLimit(rate.Limit(rps))
	rl.limiter.SetBurst(burst)
}
