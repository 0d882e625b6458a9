package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "Total number of individual tickets issued",
	})

	PurchasesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_completed_total",
		Help: "Total number of completed purchase transactions",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of failed purchase attempts",
	}, []string{"reason"})

	QuotesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_issued_total",
		Help: "Total number of price quotes returned to clients",
	})

	PurchaseTxLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_tx_latency_seconds",
		Help:    "Latency of the atomic purchase transaction",
		Buckets: prometheus.DefBuckets,
	})

	DuplicateConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplicate_confirmations_total",
		Help: "Provider confirmations discarded because the reference was already fulfilled",
	}, []string{"provider"})

	ReconciliationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_failures_total",
		Help: "Confirmed charges that could not be converted into tickets",
	}, []string{"provider", "reason"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Provider charge verifications by outcome",
	}, []string{"provider", "outcome"})

	TicketTypesClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_types_closed_total",
		Help: "Ticket types closed automatically after their event started",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notification deliveries by outcome",
	}, []string{"outcome"})

	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "check_ins_total",
		Help: "Ticket check-in attempts by outcome",
	}, []string{"outcome"})

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
