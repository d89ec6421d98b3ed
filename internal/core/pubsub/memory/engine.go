package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
)

// Compile-time check that Broker implements pubsub.Broker
var _ pubsub.Broker = (*Broker)(nil)

// Broker is the public API of the in-memory topic broker.
//
// Without a bridge, Publish enqueues directly onto the attached streams.
// With a bridge, Publish hands the event to the bridge and local delivery
// happens when the bridge hands it back from Run.
type Broker struct {
	table  *table
	bridge pubsub.Bridge
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new in-memory broker.
func New(opts pubsub.Options) *Broker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = pubsub.DefaultBufferSize
	}
	return &Broker{
		table:  newTable(opts.BufferSize),
		bridge: opts.Bridge,
		logger: slog.Default().With("component", "broker"),
		now:    time.Now,
	}
}

// Start connects the bridge, if any, and begins delivering bridged events.
// It returns once the bridge is connected; delivery continues until ctx is done.
func (b *Broker) Start(ctx context.Context) error {
	if b.bridge == nil {
		return nil
	}
	if c, ok := b.bridge.(pubsub.Connectable); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect broker bridge: %w", err)
		}
	}
	go func() {
		if err := b.bridge.Run(ctx, b.table.deliver); err != nil && ctx.Err() == nil {
			b.logger.Error("Broker bridge stopped", "error", err)
		}
	}()
	return nil
}

// Publish sends payload to every stream attached to topic.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.table.isClosed() {
		return ErrBrokerClosed
	}
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ev := pubsub.Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: b.now(),
	}
	pubsub.EventsPublished.Inc()

	if b.bridge != nil {
		return b.bridge.Publish(ctx, ev)
	}
	b.table.deliver(ev)
	return nil
}

// Subscribe attaches a new stream to topic.
func (b *Broker) Subscribe(ctx context.Context, topic string) (pubsub.Stream, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	return b.table.attach(ctx, topic)
}

// Stats returns a snapshot of the broker counters.
func (b *Broker) Stats() pubsub.Stats {
	return b.table.stats()
}

// Close shuts down the broker, closing every attached stream.
func (b *Broker) Close() error {
	if !b.table.close() {
		return nil
	}
	if b.bridge != nil {
		return b.bridge.Close()
	}
	return nil
}

// IsClosed returns true if the broker is closed.
func (b *Broker) IsClosed() bool {
	return b.table.isClosed()
}
