package billing

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recontent",
			Subsystem: "billing",
			Name:      "events_total",
			Help:      "Billing events processed by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	orphanEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recontent",
			Subsystem: "billing",
			Name:      "orphan_events_total",
			Help:      "Events referencing a subscription no organization owns.",
		},
		[]string{"kind"},
	)

	writebackFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recontent",
			Subsystem: "billing",
			Name:      "metadata_writeback_failures_total",
			Help:      "Failed best-effort subscription metadata write-backs.",
		},
	)

	webhookRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recontent",
			Subsystem: "billing",
			Name:      "webhook_rejects_total",
			Help:      "Webhook deliveries rejected before reconciliation.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, orphanEvents, writebackFailures, webhookRejects)
}
