package cloudconfig

import "github.com/prometheus/client_golang/prometheus"

var (
	pullTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_cloud_config_pulls_total",
			Help: "Cloud config pulls by outcome.",
		},
		[]string{"status"},
	)

	pushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_cloud_config_pushes_total",
			Help: "Cloud config pushes by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(pullTotal)
	prometheus.MustRegister(pushTotal)
}
