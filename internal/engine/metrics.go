package engine

import "github.com/prometheus/client_golang/prometheus"

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keeper_jobs_total",
		Help: "Finished jobs by kind and outcome.",
	},
	[]string{"kind", "status"},
)

func init() {
	prometheus.MustRegister(jobsTotal)
}
