// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the delivery engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the metric instruments for hookline.
type Metrics struct {
	EventsIngested     prometheus.Counter
	AttemptsTotal      *prometheus.CounterVec
	DeliveryLatency    prometheus.Histogram
	QueueDepth         prometheus.Gauge
	SweptSubscriptions prometheus.Counter
}

// NewMetrics creates the hookline metric instruments and registers them
// with reg. Pass prometheus.DefaultRegisterer for the process-wide
// registry, or nil to skip registration (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_events_ingested_total",
			Help: "Total number of events accepted at ingestion",
		}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookline_delivery_attempts_total",
			Help: "Total number of delivery attempts by recorded status",
		}, []string{"status"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hookline_delivery_latency_seconds",
			Help:    "Outbound delivery call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hookline_queue_due_jobs",
			Help: "Number of queue jobs currently due for dispatch",
		}),
		SweptSubscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_swept_subscriptions_total",
			Help: "Total number of subscriptions deactivated by the expiry sweeper",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EventsIngested,
			m.AttemptsTotal,
			m.DeliveryLatency,
			m.QueueDepth,
			m.SweptSubscriptions,
		)
	}

	return m
}

// RecordAttempt records a delivery attempt outcome and its latency.
func (m *Metrics) RecordAttempt(status string, latencySeconds float64) {
	m.AttemptsTotal.WithLabelValues(status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
