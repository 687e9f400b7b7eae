package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	GatewayRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_retries_total",
			Help: "Retries of transient payment gateway errors",
		},
		[]string{"operation"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by payment method and outcome",
		},
		[]string{"payment_method", "outcome"},
	)

	withdrawalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawal_transitions_total",
			Help: "Withdrawal status transitions",
		},
		[]string{"from", "to"},
	)

	unrecordedPayouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "withdrawal_unrecorded_payouts_total",
			Help: "Payouts accepted by the gateway whose withdrawal row could not be updated",
		},
	)

	paymentIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents created by flow and payment method",
		},
		[]string{"flow", "payment_method"},
	)
)

func ObserveGatewayCall(op, outcome string, d time.Duration) {
	gatewayCalls.WithLabelValues(op, outcome).Inc()
	gatewayLatency.WithLabelValues(op).Observe(d.Seconds())
}

func RecordSettlement(method, outcome string) {
	settlements.WithLabelValues(method, outcome).Inc()
}

func RecordWithdrawalTransition(from, to string) {
	withdrawalTransitions.WithLabelValues(from, to).Inc()
}

func RecordUnrecordedPayout() {
	unrecordedPayouts.Inc()
}

func RecordPaymentIntent(flow, method string) {
	paymentIntents.WithLabelValues(flow, method).Inc()
}
