package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestAvailabilityMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAvailabilityMetrics(reg)

	m.IncPublished()
	m.IncDelivered()
	m.IncDelivered()
	m.IncDropped()
	m.AddSubscribers(3)
	m.AddSubscribers(-1)
	m.IncReconcile("push")
	m.IncReconcile("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expectScalar(t, mfs, "availability_publish_total", 1)
	expectScalar(t, mfs, "availability_delivered_total", 2)
	expectScalar(t, mfs, "availability_dropped_total", 1)
	expectScalar(t, mfs, "availability_subscribers", 2)

	if got, err := fetchCounterValue(mfs, "availability_reconcile_total", "source", "push"); err != nil || got != 1 {
		t.Fatalf("expected push reconcile=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "availability_reconcile_total", "source", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown reconcile=1, got %f err=%v", got, err)
	}
}

func TestNilAvailabilityMetricsIsNoop(t *testing.T) {
	var m *AvailabilityMetrics
	m.IncPublished()
	m.IncDropped()
	m.AddSubscribers(1)
	m.IncReconcile("poll")
	if NewAvailabilityMetrics(nil) != nil {
		t.Fatal("expected nil metrics without a registerer")
	}
}

func expectScalar(t *testing.T, mfs []*dto.MetricFamily, name string, want float64) {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("metric %q not found", name)
	}
	metric := mf.GetMetric()[0]
	got := metric.GetCounter().GetValue()
	if metric.GetGauge() != nil {
		got = metric.GetGauge().GetValue()
	}
	if got != want {
		t.Fatalf("%s: expected %f, got %f", name, want, got)
	}
}
