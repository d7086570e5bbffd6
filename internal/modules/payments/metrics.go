package payments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_requests_total",
		Help: "Gateway calls by operation and result",
	}, []string{"op", "result"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Reconciliation outcomes by terminal state",
	}, []string{"outcome"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_latency_seconds",
		Help:    "Latency of callback reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	CartClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_cart_clears_total",
		Help: "Cart-clear side effects fired on paid transitions",
	})
)
