package assets

import (
	"github.com/prometheus/client_golang/prometheus"
)

var uploadURLsMinted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "recontent",
		Subsystem: "assets",
		Name:      "upload_urls_minted_total",
		Help:      "Presigned upload URLs issued.",
	},
)

func init() {
	prometheus.MustRegister(uploadURLsMinted)
}
