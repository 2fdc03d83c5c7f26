package resilience

import (
	"context"
	"time"
)

// Executor layers the configured guards around one operation. Order,
// outermost first: rate limiter, bulkhead, circuit breaker, retry,
// timeout — so a retry never burns rate-limit tokens, and each attempt
// gets its own deadline.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor composes the given guards; any subset is valid.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// Execute runs op through the configured guard stack.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	if e.timeout != nil {
		run = wrap(e.timeout.Execute, run)
	}
	if e.retry != nil {
		run = wrap(e.retry.Execute, run)
	}
	if e.circuitBreaker != nil {
		run = wrap(e.circuitBreaker.Execute, run)
	}
	if e.bulkhead != nil {
		run = wrap(e.bulkhead.Execute, run)
	}
	if e.rateLimiter != nil {
		run = wrap(e.rateLimiter.Execute, run)
	}
	return run(ctx)
}

type guard func(context.Context, func(context.Context) error) error

func wrap(g guard, inner func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error { return g(ctx, inner) }
}
