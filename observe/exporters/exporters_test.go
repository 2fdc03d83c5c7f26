package exporters

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"stdout", "none", ""} {
		exp, err := NewTracingExporter(ctx, name)
		if err != nil || exp == nil {
			t.Fatalf("%q: exp=%v err=%v", name, exp, err)
		}
	}

	if _, err := NewTracingExporter(ctx, "zipkin"); !errors.Is(err, ErrInvalidExporter) {
		t.Fatalf("unknown exporter: %v", err)
	}
}

func TestNewTracingExporterRequiresEndpoint(t *testing.T) {
	ctx := context.Background()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	if _, err := NewTracingExporter(ctx, "otlp"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("otlp without endpoint: %v", err)
	}

	t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")
	if _, err := NewTracingExporter(ctx, "jaeger"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("jaeger without endpoint: %v", err)
	}
}

func TestNewMetricsReader(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"stdout", "prometheus", "none", ""} {
		reader, err := NewMetricsReader(ctx, name)
		if err != nil || reader == nil {
			t.Fatalf("%q: reader=%v err=%v", name, reader, err)
		}
	}

	if _, err := NewMetricsReader(ctx, "statsd"); !errors.Is(err, ErrInvalidExporter) {
		t.Fatalf("unknown exporter: %v", err)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	if _, err := NewMetricsReader(ctx, "otlp"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("otlp without endpoint: %v", err)
	}
}
