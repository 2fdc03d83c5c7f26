package resilience

import (
	"context"
	"testing"
	"time"
)

func BenchmarkBulkheadExecute(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 16, MaxWait: time.Second})
	op := func(context.Context) error { return nil }
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bh.Execute(context.Background(), op)
		}
	})
}

func BenchmarkRateLimiterAllow(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1e9, Burst: 1 << 20})
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rl.Allow()
		}
	})
}

func BenchmarkCircuitBreakerClosed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	op := func(context.Context) error { return nil }
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(context.Background(), op)
	}
}

func BenchmarkBackoffDelay(b *testing.B) {
	calc := NewBackoffCalculator(BackoffConfig{Strategy: BackoffExponential})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calc.Delay(i % 10)
	}
}
