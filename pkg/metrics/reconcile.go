package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payrecon"

// ReconcileMetrics tracks per-transaction outcomes and the side calls the
// reconciler depends on.
type ReconcileMetrics struct {
	outcomes            *prometheus.CounterVec
	fulfillmentFailures *prometheus.CounterVec
	bankAPILatency      *prometheus.HistogramVec
	deliveries          *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation metrics on reg. A nil
// registerer yields a no-op recorder.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_outcomes_total",
		Help:      "Reconciliation outcomes by ingestion source and result status.",
	}, []string{"source", "status"})
	fulfillmentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fulfillment_failures_total",
		Help:      "Verified orders whose fulfillment write failed.",
	}, []string{"order_type"})
	bankAPILatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bank_api_request_duration_seconds",
		Help:      "Latency of bank transaction-list calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"provider", "result"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Bank webhook deliveries by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, fulfillmentFailures, bankAPILatency, deliveries)
	return &ReconcileMetrics{
		outcomes:            outcomes,
		fulfillmentFailures: fulfillmentFailures,
		bankAPILatency:      bankAPILatency,
		deliveries:          deliveries,
	}
}

// IncOutcome counts one processed transaction.
func (m *ReconcileMetrics) IncOutcome(source, status string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
}

func (m *ReconcileMetrics) IncFulfillmentFailure(orderType string) {
	if m == nil || m.fulfillmentFailures == nil {
		return
	}
	m.fulfillmentFailures.WithLabelValues(normalizeLabel(orderType)).Inc()
}

// ObserveBankAPI records one provider call; err decides the result label.
func (m *ReconcileMetrics) ObserveBankAPI(provider string, duration time.Duration, err error) {
	if m == nil || m.bankAPILatency == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bankAPILatency.WithLabelValues(normalizeLabel(provider), result).Observe(duration.Seconds())
}

// IncDelivery counts an authenticated webhook delivery by outcome.
func (m *ReconcileMetrics) IncDelivery(result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(result)).Inc()
}
