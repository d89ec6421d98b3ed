// Package gateway opens real-time subscriptions for authenticated clients.
//
// Topics are always derived on the server from the caller's identity and the
// subscription arguments; a client can never name a topic directly, so the
// topic is the only authorization boundary and payloads are never filtered.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Kind names a subscribable event family.
type Kind string

const (
	KindMessages  Kind = "messages"
	KindSignals   Kind = "signals"
	KindPresence  Kind = "presence"
	KindFiles     Kind = "files"
	KindKnowledge Kind = "knowledge"
	KindThreads   Kind = "threads"
	KindRTC       Kind = "rtc"
)

// Args narrows a subscription. Which fields apply depends on the kind.
type Args struct {
	ThreadID  string `json:"threadId,omitempty" schema:"threadId"`
	UserID    string `json:"userId,omitempty" schema:"userId"`
	Path      string `json:"path,omitempty" schema:"path"`
	ItemID    string `json:"itemId,omitempty" schema:"itemId"`
	SessionID string `json:"sessionId,omitempty" schema:"sessionId"`
}

// TopicFor derives the topic of a subscription. Messages and signals are
// always bound to the caller; any user named in args is ignored for them.
func TopicFor(id *identity.Identity, kind Kind, args Args) (string, error) {
	if id == nil || id.UserID == "" {
		return "", model.ErrUnauthenticated
	}

	switch kind {
	case KindMessages:
		return topic.Message(id.UserID, args.ThreadID), nil
	case KindSignals:
		return topic.Signal(id.UserID), nil
	case KindPresence:
		return topic.Presence(args.UserID), nil
	case KindFiles:
		return topic.FS(args.Path), nil
	case KindKnowledge:
		if args.ItemID != "" {
			return topic.Knowledge(args.ItemID), nil
		}
		return topic.Knowledge(id.UserID), nil
	case KindThreads:
		if args.ThreadID != "" {
			return topic.Thread(args.ThreadID), nil
		}
		return topic.Thread(id.UserID), nil
	case KindRTC:
		if args.SessionID != "" {
			return topic.RTC(args.SessionID), nil
		}
		return topic.RTC(id.UserID), nil
	default:
		return "", model.NewError(model.KindBadInput, "unknown subscription kind %q", kind)
	}
}

// Gateway attaches subscriptions to the broker.
type Gateway struct {
	broker pubsub.Subscriber
	logger *slog.Logger
}

func New(broker pubsub.Subscriber) *Gateway {
	return &Gateway{
		broker: broker,
		logger: slog.Default().With("component", "gateway"),
	}
}

// Subscription is one open stream bound to a caller and a topic.
type Subscription struct {
	UserID string
	Kind   Kind
	stream pubsub.Stream
}

func (s *Subscription) Topic() string {
	return s.stream.Topic()
}

// Events yields events until the subscription is closed or its context ends.
func (s *Subscription) Events() <-chan pubsub.Event {
	return s.stream.Events()
}

// Close detaches the subscription. Once it returns, no further event is delivered.
func (s *Subscription) Close() {
	s.stream.Close()
}

// Subscribe opens a subscription for id. It ends when ctx is done or Close is called.
func (g *Gateway) Subscribe(ctx context.Context, id *identity.Identity, kind Kind, args Args) (*Subscription, error) {
	t, err := TopicFor(id, kind, args)
	if err != nil {
		return nil, err
	}
	stream, err := g.broker.Subscribe(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t, err)
	}
	g.logger.Debug("Subscription opened", "user", id.UserID, "kind", kind, "topic", t)
	return &Subscription{UserID: id.UserID, Kind: kind, stream: stream}, nil
}
