package metrics

import "github.com/prometheus/client_golang/prometheus"

// AvailabilityMetrics tracks the availability push channel. A nil receiver is a no-op so
// callers without a registry can skip instrumentation.
type AvailabilityMetrics struct {
	published   prometheus.Counter
	delivered   prometheus.Counter
	dropped     prometheus.Counter
	subscribers prometheus.Gauge
	reconciled  *prometheus.CounterVec
}

// NewAvailabilityMetrics registers the availability metrics on the provided registerer.
func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	if reg == nil {
		return nil
	}
	m := &AvailabilityMetrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availability_publish_total",
			Help: "Snapshots published to a tour room.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availability_delivered_total",
			Help: "Snapshots enqueued for a subscriber.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availability_dropped_total",
			Help: "Snapshots dropped because a subscriber queue was full.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "availability_subscribers",
			Help: "Current tour room subscriptions.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_reconcile_total",
			Help: "Snapshots reconciled into a client view, by source.",
		}, []string{"source"}),
	}
	reg.MustRegister(m.published, m.delivered, m.dropped, m.subscribers, m.reconciled)
	return m
}

func (m *AvailabilityMetrics) IncPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *AvailabilityMetrics) IncDelivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *AvailabilityMetrics) IncDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// AddSubscribers moves the subscriptions gauge by delta.
func (m *AvailabilityMetrics) AddSubscribers(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.subscribers.Add(float64(delta))
}

// IncReconcile counts one reconcile pass fed by source ("push" or "poll").
func (m *AvailabilityMetrics) IncReconcile(source string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(normalizeLabel(source)).Inc()
}
