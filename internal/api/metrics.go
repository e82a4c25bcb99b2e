package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keeper",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by method and route.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served.",
	})

	logStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keeper",
		Name:      "log_streams_active",
		Help:      "Open job log event streams.",
	})
)

func init() {
	prometheus.MustRegister(requestsServed, requestLatency, requestsInFlight, logStreams)
}

// instrument counts every request against its chi route so that asset keys
// and job IDs never become label values.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		began := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		requestsServed.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(began).Seconds())
	})
}

var exposition = promhttp.Handler()
