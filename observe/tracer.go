package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta identifies one unit of platform work for telemetry: a
// pipeline run, a sink publish, a lock acquisition, a DLQ retry.
type OpMeta struct {
	Component string // owning subsystem: hook, lock, dlq, resilience
	Op        string // operation within the component: run, publish, acquire
	Branch    string // three-segment branch path, when branch-scoped
	Queue     string // DLQ queue name, when queue-scoped
}

// SpanName renders the deterministic span name ontology.<component>.<op>.
func (m OpMeta) SpanName() string {
	return "ontology." + m.Component + "." + m.Op
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("ontology.component", m.Component),
		attribute.String("ontology.op", m.Op),
	}
	if m.Branch != "" {
		attrs = append(attrs, attribute.String("ontology.branch", m.Branch))
	}
	if m.Queue != "" {
		attrs = append(attrs, attribute.String("ontology.queue", m.Queue))
	}
	return attrs
}

// Tracer wraps OpenTelemetry span management with the platform's
// operation naming.
type Tracer interface {
	// StartSpan opens a span for the operation, returning the span-carrying
	// context for downstream calls and logging.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan closes the span, recording err as its status when non-nil.
	EndSpan(span trace.Span, err error)
}

type opTracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer, usually Observer.Tracer().
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &opTracer{tracer: t}
}

func (t *opTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *opTracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
