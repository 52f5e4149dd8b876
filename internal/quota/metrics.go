package quota

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recontent",
		Subsystem: "quota",
		Name:      "admissions_total",
		Help:      "Total admission checks by outcome.",
	}, []string{"outcome"}) // "admitted", "suspended", "exceeded", "error"

	releasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recontent",
		Subsystem: "quota",
		Name:      "releases_total",
		Help:      "Total compensating releases after failed hand-off.",
	})
)

func init() {
	prometheus.MustRegister(admissionsTotal, releasesTotal)
}
