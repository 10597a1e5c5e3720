package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Total number of completed immediate purchases",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of failed purchase attempts",
	}, []string{"reason"})

	PreordersEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preorders_enqueued_total",
		Help: "Total number of preorders accepted into the queue",
	})

	PreordersFulfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preorders_fulfilled_total",
		Help: "Total number of preorders fully served",
	})

	PreordersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preorders_cancelled_total",
		Help: "Total number of preorders cancelled",
	}, []string{"reason"})

	AllocationPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_passes_total",
		Help: "Total number of allocation scheduler passes",
	})

	AllocationSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_ticks_skipped_total",
		Help: "Total number of scheduler ticks skipped because a pass was still running",
	})

	AllocatedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocated_units_total",
		Help: "Total item instances delivered through allocation passes",
	})

	AllocationPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_pass_duration_seconds",
		Help:    "Duration of allocation scheduler passes",
		Buckets: prometheus.DefBuckets,
	})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of failed direct-message deliveries",
	}, []string{"context"})

	TopupsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topups_credited_total",
		Help: "Total number of topups credited to the ledger",
	})

	TopupsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topups_rejected_total",
		Help: "Total number of topups rejected for unregistered growids",
	})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of reserve-phase stock reads",
		Buckets: prometheus.DefBuckets,
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
