package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("burst token %d denied", i)
		}
	}
	if rl.Allow() {
		t.Fatal("token beyond burst allowed")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 1})

	if !rl.Allow() {
		t.Fatal("initial token denied")
	}
	time.Sleep(5 * time.Millisecond) // ≥1 token at 1000/s
	if !rl.Allow() {
		t.Fatal("refilled token denied")
	}
}

func TestRateLimiterTokensCappedAtBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 5})
	time.Sleep(20 * time.Millisecond)
	if got := rl.Tokens(); got > 5 {
		t.Fatalf("tokens = %f, burst 5", got)
	}
}

func TestRateLimiterWaitSucceeds(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 200, Burst: 1, MaxWait: time.Second})
	rl.AllowN(1) // drain

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestRateLimiterWaitFailsPastMaxWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1, MaxWait: 5 * time.Millisecond})
	rl.AllowN(1)

	if err := rl.Wait(context.Background()); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1, MaxWait: time.Minute})
	rl.AllowN(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRateLimiterExecuteFailFast(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	if err := rl.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	err := rl.Execute(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	rl.AllowN(2)
	if rl.Allow() {
		t.Fatal("drained bucket allowed")
	}
	rl.Reset()
	if !rl.AllowN(2) {
		t.Fatal("reset bucket should be full")
	}
}
