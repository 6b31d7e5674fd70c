package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObservePayment(t *testing.T) {
	m := NewNop()

	m.ObservePayment("TRANSFER", "COMPLETED")
	m.ObservePayment("TRANSFER", "COMPLETED")
	m.ObservePayment("PAYMENT", "CANCELLED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Payments.WithLabelValues("TRANSFER", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("PAYMENT", "CANCELLED")))
}

func TestMetrics_RegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveExecution("SYSTEM", time.Now())
	m.OutboxDeliveries.WithLabelValues("delivered").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "settlement_payments_execution_duration_seconds")
	assert.Contains(t, names, "settlement_outbox_deliveries_total")
}
