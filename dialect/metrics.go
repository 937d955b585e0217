package dialect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/unigraph"
)

// Metrics exports operation counters and latencies to Prometheus.
type Metrics struct {
	ops      *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unigraph",
			Name:      "operations_total",
			Help:      "Graph operations issued, by dialect, operation and class.",
		}, []string{"dialect", "op", "class"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unigraph",
			Name:      "operation_errors_total",
			Help:      "Failed graph operations, by dialect, operation and error kind.",
		}, []string{"dialect", "op", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unigraph",
			Name:      "operation_duration_seconds",
			Help:      "Graph operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"dialect", "class"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.ops, m.errors, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Observe implements Observer.
func (m *Metrics) Observe(_ context.Context, info OpInfo) {
	class := info.Class.String()
	m.ops.WithLabelValues(info.Dialect, info.Op, class).Inc()
	m.duration.WithLabelValues(info.Dialect, class).Observe(info.Duration.Seconds())
	if info.Err != nil {
		m.errors.WithLabelValues(info.Dialect, info.Op, unigraph.KindOf(info.Err).String()).Inc()
	}
}

var _ Observer = (*Metrics)(nil)
