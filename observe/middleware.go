package observe

import (
	"context"
	"time"
)

// OpFunc is the shape of an instrumentable operation.
type OpFunc func(ctx context.Context) error

// Middleware bundles span, metric, and log emission around an
// operation so call sites instrument with one wrapper instead of
// three.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware assembles a Middleware from the three pillars.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver is the common construction path from a wired
// Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Instrument runs fn under a span for meta, records the outcome to
// metrics, and logs completion. The error is returned unchanged.
func (m *Middleware) Instrument(ctx context.Context, meta OpMeta, fn OpFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	elapsed := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, elapsed, err)

	fields := []Field{
		{Key: "component", Value: meta.Component},
		{Key: "op", Value: meta.Op},
		{Key: "duration_ms", Value: float64(elapsed.Milliseconds())},
	}
	if meta.Branch != "" {
		fields = append(fields, Field{Key: "branch", Value: meta.Branch})
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		m.logger.Error(ctx, "operation failed", fields...)
	} else {
		m.logger.Debug(ctx, "operation completed", fields...)
	}
	return err
}
