package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func static(status Status) Checker {
	return NewCheckerFunc("static", func(context.Context) Result {
		return Result{Status: status, Timestamp: time.Now()}
	})
}

func TestAggregatorOverallStatus(t *testing.T) {
	agg := NewAggregator()

	for _, tc := range []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy dominates", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	} {
		t.Run(tc.name, func(t *testing.T) {
			results := make(map[string]Result, len(tc.statuses))
			for i, s := range tc.statuses {
				results[string(rune('a'+i))] = Result{Status: s}
			}
			if got := agg.OverallStatus(results); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAggregatorCheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register("redis", static(StatusHealthy))
	agg.Register("postgres", static(StatusUnhealthy))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results["redis"].Status != StatusHealthy || results["postgres"].Status != StatusUnhealthy {
		t.Fatalf("results = %+v", results)
	}
	if results["redis"].Duration < 0 {
		t.Fatal("duration not recorded")
	}
}

func TestAggregatorCheckByName(t *testing.T) {
	agg := NewAggregator()
	agg.Register("nats", static(StatusHealthy))

	if _, err := agg.Check(context.Background(), "nats"); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestAggregatorTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register("stuck", NewCheckerFunc("stuck", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("too late")
	}))

	results := agg.CheckAll(context.Background())
	got := results["stuck"]
	if got.Status != StatusUnhealthy || !errors.Is(got.Error, ErrCheckTimeout) {
		t.Fatalf("got %+v", got)
	}
}

func TestAggregatorReplaceKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("redis", static(StatusHealthy))
	agg.Register("nats", static(StatusHealthy))
	agg.Register("redis", static(StatusDegraded))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "redis" || names[1] != "nats" {
		t.Fatalf("names = %v", names)
	}
}
