package observe

import (
	"context"
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"minimal", Config{ServiceName: "ontologyd"}, nil},
		{"missing service name", Config{}, ErrMissingServiceName},
		{
			"bad tracing exporter",
			Config{ServiceName: "ontologyd", Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}},
			ErrInvalidTracingExporter,
		},
		{
			"bad sample pct",
			Config{ServiceName: "ontologyd", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5}},
			ErrInvalidSamplePct,
		},
		{
			"bad metrics exporter",
			Config{ServiceName: "ontologyd", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}},
			ErrInvalidMetricsExporter,
		},
		{
			"bad log level",
			Config{ServiceName: "ontologyd", Logging: LoggingConfig{Enabled: true, Level: "trace"}},
			ErrInvalidLogLevel,
		},
		{
			"disabled pillars skip validation",
			Config{ServiceName: "ontologyd", Tracing: TracingConfig{Exporter: "zipkin"}},
			nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewObserverAllDisabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "ontologyd"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("disabled pillars must still return usable no-ops")
	}
	// No-op logger must accept calls without panicking.
	obs.Logger().Info(context.Background(), "dropped")
}

func TestNewObserverShutdownIdempotent(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "ontologyd",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	_ = obs.Shutdown(context.Background())
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Debug(context.Background(), "x")
	l.Error(context.Background(), "x")
	if l.With(Field{Key: "k", Value: "v"}) == nil {
		t.Fatal("With returned nil")
	}
}
