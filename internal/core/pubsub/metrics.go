package pubsub

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_broker_events_published_total",
		Help: "The total number of events published to the broker",
	})

	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_broker_events_delivered_total",
		Help: "The total number of events handed to subscriber streams",
	})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchboard_broker_events_dropped_total",
		Help: "The total number of events dropped because a subscriber buffer was full",
	})

	ActiveTopics = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "switchboard_broker_active_topics",
		Help: "The number of topics with at least one attached stream",
	})

	ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "switchboard_broker_active_streams",
		Help: "The number of attached subscriber streams",
	})

	BridgeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switchboard_broker_bridge_errors_total",
		Help: "The total number of bridge publish or decode errors",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDelivered)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(ActiveTopics)
	prometheus.MustRegister(ActiveStreams)
	prometheus.MustRegister(BridgeErrors)
}
