package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"operation"})

	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of orders created at checkout",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received",
	}, []string{"type"})

	WebhookDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_duplicates_total",
		Help: "Total number of already-settled webhook deliveries",
	})

	PaymentsReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Total number of payments reconciled to a terminal state",
	}, []string{"outcome"})

	PaymentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_cancelled_total",
		Help: "Total number of user-initiated payment cancellations",
	})

	InventoryAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_total",
		Help: "Total number of inventory adjustments",
	}, []string{"direction"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_latency_seconds",
		Help:    "Latency of payment reconciliation transactions",
		Buckets: prometheus.DefBuckets,
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
