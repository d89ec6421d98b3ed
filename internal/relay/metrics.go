package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_relay_cache_hits_total",
		Help: "Read operations answered from the relay cache",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_relay_cache_misses_total",
		Help: "Read operations not found in the relay cache",
	})

	networkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchboard_relay_network_errors_total",
		Help: "Operations that could not reach the upstream, by kind",
	}, []string{"kind"})

	inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "switchboard_relay_inflight_requests",
		Help: "Relay requests awaiting a reply",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, networkErrors, inflight)
}
