// Package pubsub provides the topic broker abstraction used to fan out
// ephemeral events to the subscribers attached to a topic.
package pubsub

import (
	"context"
	"time"
)

// Event is a single published payload as seen by one subscriber.
type Event struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Payload     []byte    `json:"payload"`
	PublishedAt time.Time `json:"publishedAt"`

	// Gap is the number of events dropped for this subscriber immediately
	// before this one because its buffer was full. Zero means no loss.
	Gap uint64 `json:"gap,omitempty"`
}

// Publisher publishes events to a topic.
type Publisher interface {
	// Publish delivers payload to every stream attached to topic at call time.
	// Publishing to a topic without subscribers succeeds and is a no-op.
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber attaches streams to topics.
type Subscriber interface {
	// Subscribe attaches a new stream to topic. The stream is closed when ctx
	// is done or Close is called, whichever comes first.
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// Broker is a topic-addressed publish/subscribe hub.
type Broker interface {
	Publisher
	Subscriber

	// Close detaches every stream and rejects further calls.
	Close() error
}

// Stream is one subscriber's view of a topic.
type Stream interface {
	Topic() string

	// Events yields events in publish order. The channel is closed once the
	// stream is closed.
	Events() <-chan Event

	// Close detaches the stream. It is idempotent and, once it returns, no
	// further event is delivered on Events.
	Close()
}

// Stats is a point-in-time snapshot of broker counters.
type Stats struct {
	Topics    int
	Streams   int
	Published uint64
	Delivered uint64
	Dropped   uint64
}
