package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		transactionsTotal,
		transactionsRevenueTotal,
		gatewayCallsTotal,
		gatewayCallDuration,
		webhookRequestsTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Ledger transitions by resulting status (pending/approved/rejected/cancelled).",
		},
		[]string{"status"},
	)

	transactionsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_revenue_total",
			Help: "The total monetary value of approved transactions, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Outbound payment gateway calls by operation and result.",
		},
		[]string{"gateway", "op", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Latency of outbound payment gateway calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"gateway", "op"},
	)

	// result: approved|rejected|cancelled|ignored|not_found|already_final|
	// bad_signature|bad_payload|error
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_requests_total",
			Help: "Gateway notifications received by reconcile outcome.",
		},
		[]string{"result"},
	)
)

func IncTransaction(status string) {
	transactionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddRevenue(currency string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	transactionsRevenueTotal.WithLabelValues(norm(currency)).Add(f)
}

func ObserveGatewayCall(gateway, op string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCallsTotal.WithLabelValues(norm(gateway), norm(op), result).Inc()
	gatewayCallDuration.WithLabelValues(norm(gateway), norm(op)).Observe(took.Seconds())
}

func IncWebhook(result string) {
	webhookRequestsTotal.WithLabelValues(norm(result)).Inc()
}
