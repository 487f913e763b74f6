package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nexonsite/internal/livedata"
)

var (
	_ MetricsRecorder  = (*PrometheusMetrics)(nil)
	_ livedata.Metrics = (*PrometheusMetrics)(nil)
)

// PrometheusMetrics exports service operations and live subscription
// lifecycle events as Prometheus collectors.
type PrometheusMetrics struct {
	operations    *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	liveActive    *prometheus.GaugeVec
	liveSnapshots *prometheus.CounterVec
	liveFailures  *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors on reg. A nil reg uses the
// default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexonsite",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Content service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexonsite",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Content service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		liveActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexonsite",
			Subsystem: "live",
			Name:      "subscriptions_active",
			Help:      "Open live channels by watcher kind.",
		}, []string{"kind"}),
		liveSnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexonsite",
			Subsystem: "live",
			Name:      "snapshots_total",
			Help:      "Snapshots applied to watcher state.",
		}, []string{"kind"}),
		liveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexonsite",
			Subsystem: "live",
			Name:      "failures_total",
			Help:      "Live channels that ended in a terminal failure.",
		}, []string{"kind", "reason"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.durations, m.liveActive, m.liveSnapshots, m.liveFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := string(AuditStatusSuccess)
	if !success {
		status = string(AuditStatusError)
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SubscriptionOpened(kind string) { m.liveActive.WithLabelValues(kind).Inc() }
func (m *PrometheusMetrics) SubscriptionClosed(kind string) { m.liveActive.WithLabelValues(kind).Dec() }
func (m *PrometheusMetrics) SnapshotApplied(kind string)    { m.liveSnapshots.WithLabelValues(kind).Inc() }

func (m *PrometheusMetrics) SubscriptionFailed(kind, reason string) {
	m.liveFailures.WithLabelValues(kind, reason).Inc()
}
