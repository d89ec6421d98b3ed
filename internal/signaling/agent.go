package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// BrokerOutbox publishes messages as JSON on the recipient's signal topic.
func BrokerOutbox(pub pubsub.Publisher) Outbox {
	return OutboxFunc(func(ctx context.Context, msg Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode signal: %w", err)
		}
		return pub.Publish(ctx, topic.Signal(msg.To), data)
	})
}

// Agent negotiates sessions for a single user. It listens on the user's
// signal topic and drives one Transport per remote peer.
type Agent struct {
	user       string
	registry   *Registry
	subscriber pubsub.Subscriber
	logger     *slog.Logger
}

// NewAgent creates an agent for user. Outbound messages go to outbox;
// inbound ones are read from subscriber.
func NewAgent(user string, subscriber pubsub.Subscriber, outbox Outbox, factory TransportFactory, opts ...Option) *Agent {
	opts = append([]Option{WithLocal(user, factory), WithOutbox(outbox)}, opts...)
	return &Agent{
		user:       user,
		registry:   NewRegistry(opts...),
		subscriber: subscriber,
		logger:     slog.Default().With("component", "signaling-agent", "user", user),
	}
}

func (a *Agent) User() string {
	return a.user
}

func (a *Agent) Registry() *Registry {
	return a.registry
}

// Call sends an OFFER to remote.
func (a *Agent) Call(ctx context.Context, remote string) error {
	_, err := a.registry.Offer(ctx, remote)
	return err
}

// Accept answers the pending OFFER from remote.
func (a *Agent) Accept(ctx context.Context, remote string) error {
	_, err := a.registry.Answer(ctx, remote)
	return err
}

func (a *Agent) Hangup(ctx context.Context, remote string) error {
	return a.registry.Hangup(ctx, remote)
}

// Run consumes the user's signal topic until ctx is done or the stream
// closes. Invalid messages are logged and skipped.
func (a *Agent) Run(ctx context.Context) error {
	stream, err := a.subscriber.Subscribe(ctx, topic.Signal(a.user))
	if err != nil {
		return fmt.Errorf("failed to subscribe to signals: %w", err)
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-stream.Events():
			if !ok {
				return nil
			}
			if ev.Gap > 0 {
				a.logger.Warn("Signals dropped", "count", ev.Gap)
			}
			a.dispatch(ctx, ev)
		}
	}
}

func (a *Agent) dispatch(ctx context.Context, ev pubsub.Event) {
	var msg Message
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		a.logger.Warn("Discarding malformed signal", "event", ev.ID, "error", err)
		return
	}
	// The node echoes our own hangups onto our topic.
	if msg.From == a.user {
		return
	}
	phase, err := a.registry.Handle(ctx, msg)
	if err != nil {
		level := slog.LevelWarn
		if model.KindOf(err) == model.KindInvalidState {
			level = slog.LevelDebug
		}
		a.logger.Log(ctx, level, "Signal rejected", "from", msg.From, "type", msg.Type, "phase", phase.String(), "error", err)
	}
}
