package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_charges_total",
		Help: "Total number of charges persisted, by resulting status",
	}, []string{"status"})

	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_refunds_total",
		Help: "Total number of refunds applied",
	})

	ChargesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_charges_rejected_total",
		Help: "Total number of rejected charge requests",
	}, []string{"reason"})

	ReplaysServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_replays_served_total",
		Help: "Total number of duplicate requests answered from the idempotency cache",
	})

	ClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_claim_conflicts_total",
		Help: "Total number of duplicate requests rejected while the key was in flight",
	})

	KeysPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_keys_purged_total",
		Help: "Total number of expired idempotency keys purged",
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate gate",
	})

	GatewayChargeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_charge_latency_seconds",
		Help:    "Latency of settlement gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	GatewayOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_outcomes_total",
		Help: "Settlement gateway outcomes",
	}, []string{"status"})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of failed notification deliveries",
	})

	NotificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Total number of notifications dropped because the dispatch queue was full",
	})

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
