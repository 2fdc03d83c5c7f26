package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is tokens added per second. Default 100.
	Rate float64

	// Burst is the bucket capacity. Default 10.
	Burst int

	// WaitOnLimit makes Execute wait for a token instead of failing
	// with ErrRateLimitExceeded.
	WaitOnLimit bool

	// MaxWait bounds a single wait. Default 1s.
	MaxWait time.Duration
}

// RateLimiter is a token bucket. The DLQ background processor uses one
// to pace retry dispatch so draining a backlog cannot flood a
// recovering dependency.
type RateLimiter struct {
	rate        float64
	burst       float64
	waitOnLimit bool
	maxWait     time.Duration

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	return &RateLimiter{
		rate:        config.Rate,
		burst:       float64(config.Burst),
		waitOnLimit: config.WaitOnLimit,
		maxWait:     config.MaxWait,
		tokens:      float64(config.Burst),
		refilled:    time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool { return rl.AllowN(1) }

// AllowN consumes n tokens if all are available.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	if rl.tokens < float64(n) {
		return false
	}
	rl.tokens -= float64(n)
	return true
}

// Wait blocks until a token is available, the wait exceeds MaxWait, or
// ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error { return rl.WaitN(ctx, 1) }

// WaitN blocks for n tokens.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl.AllowN(n) {
		return nil
	}

	rl.mu.Lock()
	shortfall := float64(n) - rl.tokens
	rl.mu.Unlock()

	wait := time.Duration(shortfall / rl.rate * float64(time.Second))
	if wait > rl.maxWait {
		wait = rl.maxWait
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}
	if rl.AllowN(n) {
		return nil
	}
	return ErrRateLimitExceeded
}

// Execute runs op under the limit, waiting or failing per WaitOnLimit.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.waitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens reports the bucket level after refill.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.tokens = rl.burst
	rl.refilled = time.Now()
	rl.mu.Unlock()
}

func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	rl.tokens += now.Sub(rl.refilled).Seconds() * rl.rate
	rl.refilled = now
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}
