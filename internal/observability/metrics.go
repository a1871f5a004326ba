package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcb_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcb_orders_created_total",
			Help: "Orders created, labelled by creation path",
		},
		[]string{"path"},
	)

	OracleAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fcb_oracle_attempts",
			Help:    "Lookup attempts the matching oracle needed per webhook",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcb_bookings_total",
			Help: "Booking operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	CapacityConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcb_capacity_conflicts_total",
			Help: "Booking attempts rejected because the class was full",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fcb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fcb_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	NotifySendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcb_notify_send_failures_total",
			Help: "Confirmation notifications that failed to send",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
