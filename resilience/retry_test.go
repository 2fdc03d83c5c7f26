package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})
	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})
	if err != nil || attempts != 1 {
		t.Fatalf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, Jitter: false})
	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("nats publish failed")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, Jitter: false})
	last := errors.New("attempt 2 failure")
	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("attempt 1 failure")
		}
		return last
	})
	if !errors.Is(err, last) {
		t.Fatalf("err = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetryRetryIfStopsNonRetryable(t *testing.T) {
	fatal := errors.New("4xx: invalid branch path")
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !errors.Is(err, fatal) },
	})
	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) || attempts != 1 {
		t.Fatalf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	var callbackAttempts []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Jitter:       false,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			callbackAttempts = append(callbackAttempts, attempt)
		},
	})
	_ = r.Execute(context.Background(), func(context.Context) error {
		return errors.New("still failing")
	})
	// Called before each retry, not after the final failure.
	if len(callbackAttempts) != 2 || callbackAttempts[0] != 1 || callbackAttempts[1] != 2 {
		t.Fatalf("callbacks = %v", callbackAttempts)
	}
}

func TestRetryHonorsContextDuringDelay(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Minute, Jitter: false})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := r.Execute(ctx, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryDelayStrategies(t *testing.T) {
	base := 10 * time.Millisecond
	for _, tc := range []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"fixed attempt 3", BackoffFixed, 3, base},
		{"linear attempt 3", BackoffLinear, 3, 3 * base},
		{"exponential attempt 3", BackoffExponential, 3, 4 * base},
		{"fibonacci attempt 5", BackoffFibonacci, 5, 5 * base},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{InitialDelay: base, Strategy: tc.strategy, Jitter: false, MaxDelay: time.Hour})
			if got := r.calculateDelay(tc.attempt); got != tc.want {
				t.Fatalf("delay = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRetryDelayCappedAtMax(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: time.Second, Strategy: BackoffExponential, Jitter: false, MaxDelay: 2 * time.Second})
	if got := r.calculateDelay(10); got != 2*time.Second {
		t.Fatalf("delay = %v", got)
	}
}
