package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recontent",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Consumed jobs by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	renderSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recontent",
			Subsystem: "worker",
			Name:      "render_seconds",
			Help:      "Wall time spent rendering one job.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, renderSeconds)
}
