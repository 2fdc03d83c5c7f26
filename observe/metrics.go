package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records operation outcomes: one total counter, one error
// counter, one duration histogram, all labeled by component and op.
// Implementations must return quickly and never panic.
type Metrics interface {
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)
}

type opMetrics struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics builds the operation instruments on meter, usually
// Observer.Meter().
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(
		"ontology.op.total",
		metric.WithDescription("Platform operations started"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	errCount, err := meter.Int64Counter(
		"ontology.op.errors",
		metric.WithDescription("Platform operations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"ontology.op.duration_ms",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &opMetrics{total: total, errors: errCount, duration: duration}, nil
}

func (m *opMetrics) RecordOperation(ctx context.Context, meta OpMeta, d time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("ontology.component", meta.Component),
		attribute.String("ontology.op", meta.Op),
	)
	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(d)/float64(time.Millisecond), opt)
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordOperation(context.Context, OpMeta, time.Duration, error) {}
