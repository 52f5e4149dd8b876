package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var publishFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "recontent",
		Subsystem: "jobs",
		Name:      "publish_failures_total",
		Help:      "Admitted jobs that failed to reach the queue.",
	},
)

func init() {
	prometheus.MustRegister(publishFailures)
}
