package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders persisted by checkout",
	})

	// Captures por resultado: paid, already_captured, failed, unavailable.
	Captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_captures_total",
			Help: "Payment capture attempts by outcome",
		},
		[]string{"result"},
	)

	CapturedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_captured_amount_minor_total",
		Help: "Sum of captured order totals in minor units",
	})

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Order status transitions applied",
		},
		[]string{"to"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
