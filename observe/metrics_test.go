package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestMetricsRecordOperation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	meta := OpMeta{Component: "hook", Op: "publish"}
	m.RecordOperation(context.Background(), meta, 25*time.Millisecond, nil)
	m.RecordOperation(context.Background(), meta, 5*time.Millisecond, errors.New("sink down"))

	rm := collect(t, reader)

	total, ok := findMetric(rm, "ontology.op.total")
	if !ok {
		t.Fatal("total counter missing")
	}
	sum := total.Data.(metricdata.Sum[int64])
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Fatalf("total = %d", got)
	}

	errs, ok := findMetric(rm, "ontology.op.errors")
	if !ok {
		t.Fatal("error counter missing")
	}
	errSum := errs.Data.(metricdata.Sum[int64])
	if got := errSum.DataPoints[0].Value; got != 1 {
		t.Fatalf("errors = %d", got)
	}

	if _, ok := findMetric(rm, "ontology.op.duration_ms"); !ok {
		t.Fatal("duration histogram missing")
	}
}

func TestNopMetrics(t *testing.T) {
	NopMetrics().RecordOperation(context.Background(), OpMeta{}, 0, nil)
}
