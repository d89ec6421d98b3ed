package publisher

import "github.com/prometheus/client_golang/prometheus"

var (
	published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchboard_publisher_events_published_total",
		Help: "Events published after a committed mutation, by operation",
	}, []string{"op"})

	publishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchboard_publisher_publish_failures_total",
		Help: "Events that could not be published after a committed mutation, by operation",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(published, publishFailures)
}

var indexFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "switchboard_publisher_index_failures_total",
	Help: "Search index updates that failed after a committed knowledge mutation",
})

func init() {
	prometheus.MustRegister(indexFailures)
}
