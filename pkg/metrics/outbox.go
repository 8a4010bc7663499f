package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish results.
const (
	OutboxPublished  = "published"
	OutboxRetry      = "retry"
	OutboxDeadLetter = "dead_letter"
)

// OutboxMetrics records how notification rows leave the outbox.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	lag     *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	lag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Time between an outbox row being written and published.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 900},
	}, []string{"event_type"})
	reg.MustRegister(results, lag)
	return &OutboxMetrics{results: results, lag: lag}
}

// Observe counts one handled row. Lag is only recorded for published rows.
func (m *OutboxMetrics) Observe(eventType, result string, createdAt time.Time) {
	if m == nil || m.results == nil {
		return
	}
	label := normalizeLabel(eventType)
	m.results.WithLabelValues(label, normalizeLabel(result)).Inc()
	if result == OutboxPublished && !createdAt.IsZero() {
		m.lag.WithLabelValues(label).Observe(time.Since(createdAt).Seconds())
	}
}
