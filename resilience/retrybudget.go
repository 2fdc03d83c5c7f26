package resilience

import (
	"sync"
	"time"
)

// RetryBudgetConfig configures a RetryBudget.
type RetryBudgetConfig struct {
	// WindowSize is the sliding window duration over which the retry
	// ratio is computed. Default: 60s.
	WindowSize time.Duration

	// MinRequests is the minimum number of observations in the window
	// before the budget percentage is enforced. Below this, retries are
	// always allowed. Default: 10.
	MinRequests int

	// BudgetPercent is the maximum allowed ratio of retries to total
	// attempts, as a percentage. Default: 20.
	BudgetPercent float64

	// MaxTokens is the token bucket capacity. Default: 10.
	MaxTokens int

	// TokensPerSecond is the token bucket refill rate. Default: 1.
	TokensPerSecond float64
}

type budgetEntry struct {
	at      time.Time
	isRetry bool
}

// RetryBudget guards retry rate using a sliding window plus a token
// bucket, preventing retry storms from overwhelming a failing
// dependency. An attempt is allowed to retry only if the window has
// too few observations to judge yet, or the retry ratio stays within
// budget and a token is available.
type RetryBudget struct {
	cfg RetryBudgetConfig

	mu              sync.Mutex
	window          []budgetEntry
	totalInWindow   int
	retriesInWindow int
	tokens          float64
	lastRefill      time.Time
}

// NewRetryBudget creates a RetryBudget with defaults applied.
func NewRetryBudget(cfg RetryBudgetConfig) *RetryBudget {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 60 * time.Second
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 10
	}
	if cfg.BudgetPercent <= 0 {
		cfg.BudgetPercent = 20
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 10
	}
	if cfg.TokensPerSecond <= 0 {
		cfg.TokensPerSecond = 1
	}

	return &RetryBudget{
		cfg:        cfg,
		tokens:     float64(cfg.MaxTokens),
		lastRefill: time.Now(),
	}
}

// CanRetry reports whether a retry attempt is currently permitted.
func (b *RetryBudget) CanRetry() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanupWindowLocked()

	if b.totalInWindow < b.cfg.MinRequests {
		return true
	}

	futureRetries := float64(b.retriesInWindow + 1)
	futureTotal := float64(b.totalInWindow + 1)
	futurePercent := (futureRetries / futureTotal) * 100

	b.refillTokensLocked()
	hasTokens := b.tokens >= 1

	return futurePercent <= b.cfg.BudgetPercent && hasTokens
}

// RecordAttempt records an attempt (original call or retry) in the window.
func (b *RetryBudget) RecordAttempt(isRetry bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.window = append(b.window, budgetEntry{at: now, isRetry: isRetry})
	b.totalInWindow++
	if isRetry {
		b.retriesInWindow++
		if b.tokens >= 1 {
			b.tokens--
		} else {
			b.tokens = 0
		}
	}

	b.cleanupWindowLocked()
}

// RemainingBudgetPercent returns the unused portion of the retry budget.
func (b *RetryBudget) RemainingBudgetPercent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanupWindowLocked()

	if b.totalInWindow == 0 {
		return b.cfg.BudgetPercent
	}

	current := (float64(b.retriesInWindow) / float64(b.totalInWindow)) * 100
	remaining := b.cfg.BudgetPercent - current
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears all window and token-bucket state.
func (b *RetryBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = nil
	b.totalInWindow = 0
	b.retriesInWindow = 0
	b.tokens = float64(b.cfg.MaxTokens)
	b.lastRefill = time.Now()
}

// RetryBudgetMetrics reports the current state of a RetryBudget.
type RetryBudgetMetrics struct {
	TotalRequests          int
	RetryRequests          int
	RetryPercent           float64
	BudgetPercent          float64
	RemainingBudgetPercent float64
	TokensAvailable        float64
	WindowSizeSeconds      float64
}

// Metrics reports the current budget state.
func (b *RetryBudget) Metrics() RetryBudgetMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanupWindowLocked()

	var retryPercent float64
	if b.totalInWindow > 0 {
		retryPercent = (float64(b.retriesInWindow) / float64(b.totalInWindow)) * 100
	}

	remaining := b.cfg.BudgetPercent - retryPercent
	if remaining < 0 {
		remaining = 0
	}

	return RetryBudgetMetrics{
		TotalRequests:          b.totalInWindow,
		RetryRequests:          b.retriesInWindow,
		RetryPercent:           retryPercent,
		BudgetPercent:          b.cfg.BudgetPercent,
		RemainingBudgetPercent: remaining,
		TokensAvailable:        b.tokens,
		WindowSizeSeconds:      b.cfg.WindowSize.Seconds(),
	}
}

func (b *RetryBudget) cleanupWindowLocked() {
	now := time.Now()
	windowStart := now.Add(-b.cfg.WindowSize)

	i := 0
	for i < len(b.window) && b.window[i].at.Before(windowStart) {
		if b.window[i].isRetry {
			b.retriesInWindow--
		}
		b.totalInWindow--
		i++
	}
	if i > 0 {
		b.window = b.window[i:]
	}
}

func (b *RetryBudget) refillTokensLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	add := elapsed * b.cfg.TokensPerSecond
	if add >= 1 {
		b.tokens += add
		if b.tokens > float64(b.cfg.MaxTokens) {
			b.tokens = float64(b.cfg.MaxTokens)
		}
		b.lastRefill = now
	}
}
