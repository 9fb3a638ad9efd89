package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes.
const (
	ResultConfirmed   = "confirmed"
	ResultAlreadyPaid = "already_paid"
	ResultMismatch    = "amount_mismatch"
	ResultNotFound    = "not_found"
	ResultRejected    = "rejected"
	ResultError       = "error"
	ResultDuplicate   = "duplicate"
	ResultIgnored     = "ignored"
	ResultOK          = "ok"
)

// PaymentMetrics counts gateway calls and payment reconciliations.
type PaymentMetrics struct {
	reconciliations *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	breakerChanges  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Payment confirmations by source and outcome.",
	}, []string{"source", "result"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_calls_total",
		Help: "Outbound payment gateway calls by operation and outcome.",
	}, []string{"operation", "result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Inbound payment webhooks by event and outcome.",
	}, []string{"event", "result"})
	breakerChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_breaker_transitions_total",
		Help: "Circuit breaker state changes for the payment gateway.",
	}, []string{"to"})
	reg.MustRegister(reconciliations, gatewayCalls, webhooks, breakerChanges)
	return &PaymentMetrics{
		reconciliations: reconciliations,
		gatewayCalls:    gatewayCalls,
		webhooks:        webhooks,
		breakerChanges:  breakerChanges,
	}
}

func (m *PaymentMetrics) IncReconciliation(source, result string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}

func (m *PaymentMetrics) IncGatewayCall(operation, result string) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (m *PaymentMetrics) IncWebhook(event, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}

// BreakerChanged is shaped to plug into the gateway client's breaker hook.
func (m *PaymentMetrics) BreakerChanged(_, to string) {
	if m == nil || m.breakerChanges == nil {
		return
	}
	m.breakerChanges.WithLabelValues(normalizeLabel(to)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
