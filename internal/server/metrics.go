package server

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchboard_http_requests_total",
		Help: "HTTP requests served, by method and status code",
	}, []string{"method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "switchboard_http_request_duration_seconds",
		Help:    "Time spent serving HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_http_rate_limited_total",
		Help: "HTTP requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, rateLimited)
}
