package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/internal/gateway"
	"github.com/syntrixbase/switchboard/pkg/model"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	// idleTimeout bounds the silence between frames or pings from the node.
	idleTimeout  = 90 * time.Second
	streamBuffer = 64

	authFrameID      = "auth"
	subscribeFrameID = "signals"
)

// RealtimeSubscriber reads signal topics from a node's /v1/realtime socket.
// Each Subscribe opens its own connection, authenticated with token.
type RealtimeSubscriber struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger *slog.Logger
}

var _ pubsub.Subscriber = (*RealtimeSubscriber)(nil)

// NewRealtimeSubscriber derives the socket URL from an http(s) or ws(s) base URL.
func NewRealtimeSubscriber(baseURL, token string) (*RealtimeSubscriber, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/v1/realtime")
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported upstream scheme %q", u.Scheme)
	}
	return &RealtimeSubscriber{
		url:    u.String(),
		token:  token,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: slog.Default().With("component", "relay.realtime"),
	}, nil
}

// Subscribe accepts signal topics only. The node binds a signal subscription
// to the token's user, so t must name that user.
func (s *RealtimeSubscriber) Subscribe(ctx context.Context, t string) (pubsub.Stream, error) {
	domain, _, err := topic.Parse(t)
	if err != nil {
		return nil, model.Wrap(model.KindBadInput, err, "invalid topic")
	}
	if domain != topic.DomainSignal {
		return nil, model.NewError(model.KindBadInput, "only signal topics can be read from the node, got %q", t)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.ErrCanceled
		}
		return nil, model.Wrap(model.KindNetworkError, err, "realtime socket unreachable")
	}
	if err := s.handshake(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	st := &stream{
		topic:  t,
		conn:   conn,
		events: make(chan pubsub.Event, streamBuffer),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

	go st.read()
	go func() {
		select {
		case <-ctx.Done():
			st.Close()
		case <-st.done:
		}
	}()
	return st, nil
}

// handshake authenticates and subscribes to the caller's signals.
func (s *RealtimeSubscriber) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_ = conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()

	steps := []struct {
		frame gateway.BaseMessage
		ack   string
	}{
		{gateway.BaseMessage{ID: authFrameID, Type: gateway.TypeAuth, Payload: mustMarshal(gateway.AuthPayload{Token: s.token})}, gateway.TypeAuthAck},
		{gateway.BaseMessage{ID: subscribeFrameID, Type: gateway.TypeSubscribe, Payload: mustMarshal(gateway.SubscribePayload{Kind: gateway.KindSignals})}, gateway.TypeSubscribeAck},
	}
	for _, step := range steps {
		if err := conn.WriteJSON(step.frame); err != nil {
			return model.Wrap(model.KindNetworkError, err, "realtime handshake failed")
		}
		var reply gateway.BaseMessage
		if err := conn.ReadJSON(&reply); err != nil {
			return model.Wrap(model.KindNetworkError, err, "realtime handshake failed")
		}
		switch {
		case reply.Type == step.ack && reply.ID == step.frame.ID:
		case reply.Type == gateway.TypeError:
			var p gateway.ErrorPayload
			_ = json.Unmarshal(reply.Payload, &p)
			kind := model.KindNetworkError
			if p.Code == "unauthorized" || p.Code == "invalid_auth" {
				kind = model.KindUnauthenticated
			}
			return model.NewError(kind, "realtime %s rejected: %s", step.frame.Type, p.Message)
		default:
			return model.NewError(model.KindNetworkError, "unexpected %q frame during realtime %s", reply.Type, step.frame.Type)
		}
	}
	return nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// stream is one realtime connection carrying a single subscription.
type stream struct {
	topic  string
	conn   *websocket.Conn
	events chan pubsub.Event
	done   chan struct{}
	logger *slog.Logger

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (st *stream) Topic() string {
	return st.topic
}

func (st *stream) Events() <-chan pubsub.Event {
	return st.events
}

func (st *stream) Close() {
	st.once.Do(func() {
		close(st.done)
		st.mu.Lock()
		st.closed = true
		st.mu.Unlock()
		_ = st.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = st.conn.Close()
	})
}

// deliver hands ev to the consumer unless the stream has been closed.
func (st *stream) deliver(ev pubsub.Event) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return false
	}
	select {
	case st.events <- ev:
		return true
	case <-st.done:
		return false
	}
}

func (st *stream) read() {
	defer close(st.events)
	defer st.Close()

	for {
		var msg gateway.BaseMessage
		if err := st.conn.ReadJSON(&msg); err != nil {
			select {
			case <-st.done:
			default:
				st.logger.Warn("Realtime socket closed", "topic", st.topic, "error", err)
			}
			return
		}
		_ = st.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		switch msg.Type {
		case gateway.TypeEvent:
			var p gateway.EventPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				st.logger.Warn("Discarding malformed event", "error", err)
				continue
			}
			if p.Topic != st.topic {
				st.logger.Warn("Discarding event for another topic", "topic", p.Topic, "want", st.topic)
				continue
			}
			ev := pubsub.Event{ID: p.EventID, Topic: p.Topic, Payload: p.Data, PublishedAt: p.PublishedAt, Gap: p.Gap}
			if !st.deliver(ev) {
				return
			}
		case gateway.TypeError:
			st.logger.Warn("Realtime error frame", "payload", string(msg.Payload))
		}
	}
}
