package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig bounds one operation's wall-clock time. Default 30s.
type TimeoutConfig struct {
	Timeout time.Duration
}

// Timeout runs operations under a deadline. The operation receives a
// context that expires at the deadline; an operation that ignores it
// is abandoned, not interrupted.
type Timeout struct {
	timeout time.Duration
}

// NewTimeout creates a timeout guard.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{timeout: config.Timeout}
}

// Execute runs op under the deadline, returning ErrTimeout when the
// deadline lapses first.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// ExecuteWithTimeout is shorthand for a one-off deadline.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
