package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records payment-to-booking reconciliation results.
type ReconcileMetrics struct {
	outcomes     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lineFailures prometheus.Counter
	reused       prometheus.Counter
	created      prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reconcile_total",
		Help: "Reconciliation runs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_reconcile_duration_seconds",
		Help:    "Duration of reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	lineFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_reconcile_line_failures_total",
		Help: "Cart lines that produced no booking.",
	})
	reused := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_reconcile_reused_total",
		Help: "Bookings found already written by a concurrent writer.",
	})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_reconcile_created_total",
		Help: "Bookings inserted by the reconciler.",
	})
	reg.MustRegister(outcomes, duration, lineFailures, reused, created)
	return &ReconcileMetrics{
		outcomes:     outcomes,
		duration:     duration,
		lineFailures: lineFailures,
		reused:       reused,
		created:      created,
	}
}

// ObserveOutcome counts one run and its duration.
func (m *ReconcileMetrics) ObserveOutcome(outcome string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.outcomes.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// AddLines records per-line results of a materialization pass.
func (m *ReconcileMetrics) AddLines(created, reused, failed int) {
	if m == nil || m.created == nil {
		return
	}
	m.created.Add(float64(created))
	m.reused.Add(float64(reused))
	m.lineFailures.Add(float64(failed))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
