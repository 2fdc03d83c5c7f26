package resilience

import (
	"context"
	"time"
)

// RetryExecutorConfig configures a RetryExecutor.
type RetryExecutorConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// Backoff computes the delay before each retry. If nil, a default
	// exponential calculator is used.
	Backoff *BackoffCalculator

	// RetryBudgetEnabled gates retries (not the first attempt) behind
	// Budget.CanRetry.
	RetryBudgetEnabled bool

	// Budget is consulted when RetryBudgetEnabled is true.
	Budget *RetryBudget

	// CircuitBreakerEnabled routes each attempt through Breaker.
	CircuitBreakerEnabled bool

	// Breaker is consulted when CircuitBreakerEnabled is true.
	Breaker *CircuitBreaker

	// RetryIf decides whether a given error is retryable.
	// Default: all non-nil errors are retryable.
	RetryIf func(error) bool

	// OnRetry is invoked before sleeping ahead of each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// RetryResult is the outcome of a RetryExecutor run.
type RetryResult struct {
	Success    bool
	Attempts   int
	TotalDelay time.Duration
	LastErr    error
}

// RetryExecutor implements the per-attempt retry algorithm: budget
// check, attempt recording, optional circuit-breaker wrapping, and
// backoff-computed sleep between attempts. It composes the backoff
// calculator, retry budget, and circuit breaker around a user
// callable, unlike the simpler Executor, which just chains patterns
// without per-attempt budget bookkeeping.
type RetryExecutor struct {
	cfg RetryExecutorConfig
}

// NewRetryExecutor creates a RetryExecutor with defaults applied.
func NewRetryExecutor(cfg RetryExecutorConfig) *RetryExecutor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoffCalculator(BackoffConfig{Strategy: BackoffExponential})
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(err error) bool { return err != nil }
	}
	return &RetryExecutor{cfg: cfg}
}

// Execute runs op, retrying on failure per the configured policy.
func (re *RetryExecutor) Execute(ctx context.Context, op func(context.Context) error) RetryResult {
	result := RetryResult{}

	for attempt := 1; attempt <= re.cfg.MaxAttempts; attempt++ {
		if re.cfg.RetryBudgetEnabled && attempt > 1 {
			if re.cfg.Budget == nil || !re.cfg.Budget.CanRetry() {
				result.Attempts = attempt - 1
				result.LastErr = &RetryError{Reason: ErrRetryBudgetExhausted, Attempts: result.Attempts}
				return result
			}
		}

		if re.cfg.RetryBudgetEnabled && re.cfg.Budget != nil {
			re.cfg.Budget.RecordAttempt(attempt > 1)
		}

		var err error
		if re.cfg.CircuitBreakerEnabled && re.cfg.Breaker != nil {
			err = re.cfg.Breaker.Execute(ctx, op)
		} else {
			err = op(ctx)
		}

		result.Attempts = attempt

		if err == nil {
			result.Success = true
			result.LastErr = nil
			return result
		}

		result.LastErr = err

		if !re.cfg.RetryIf(err) {
			return result
		}

		if attempt >= re.cfg.MaxAttempts {
			result.LastErr = &RetryError{Reason: ErrRetryExhausted, Attempts: attempt, LastErr: err}
			return result
		}

		delay := re.cfg.Backoff.Delay(attempt)
		result.TotalDelay += delay

		if re.cfg.OnRetry != nil {
			re.cfg.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			result.LastErr = ctx.Err()
			return result
		case <-time.After(delay):
		}
	}

	return result
}
