package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the settlement collectors
type Metrics struct {
	Payments           *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	OutboxDeliveries   *prometheus.CounterVec
	CallbackDispatches *prometheus.CounterVec
}

// New creates and registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "settlement",
				Subsystem: "payments",
				Name:      "total",
				Help:      "Payments by kind and resulting status",
			},
			[]string{"kind", "status"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "settlement",
				Subsystem: "payments",
				Name:      "execution_duration_seconds",
				Help:      "Time taken to execute a payment, including ledger application",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		OutboxDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "settlement",
				Subsystem: "outbox",
				Name:      "deliveries_total",
				Help:      "Outbox delivery attempts by result",
			},
			[]string{"result"},
		),
		CallbackDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "settlement",
				Subsystem: "tracking",
				Name:      "dispatches_total",
				Help:      "Tracked payment callbacks by type and result",
			},
			[]string{"type", "result"},
		),
	}
}

// NewNop returns collectors bound to a private registry
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObservePayment records a payment reaching status
func (m *Metrics) ObservePayment(kind, status string) {
	m.Payments.WithLabelValues(kind, status).Inc()
}

// ObserveExecution records how long an execution took
func (m *Metrics) ObserveExecution(kind string, started time.Time) {
	m.SettlementDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
