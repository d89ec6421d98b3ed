package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/internal/gateway"
	gwconfig "github.com/syntrixbase/switchboard/internal/gateway/config"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/signaling"
)

type tokens map[string]*identity.Identity

func (s tokens) Authenticate(_ context.Context, credentials string) (*identity.Identity, error) {
	if id, ok := s[credentials]; ok {
		return id, nil
	}
	return nil, errors.New("invalid token")
}

var testTokens = tokens{
	"alice-token": {UserID: "alice", Role: "USER"},
	"bob-token":   {UserID: "bob", Role: "USER"},
}

// startGateway serves /v1/realtime over a fresh broker.
func startGateway(t *testing.T) (*memory.Broker, string) {
	t.Helper()
	broker := memory.New(pubsub.DefaultOptions())
	srv := gateway.NewServer(gateway.New(broker), testTokens, gwconfig.DefaultGatewayConfig().Realtime)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = broker.Close()
	})
	return broker, ts.URL
}

// nodeNetwork answers the operations the call agent sends, the way a node
// does for the user it is authenticated as.
type nodeNetwork struct {
	user   string
	broker pubsub.Publisher

	mu   sync.Mutex
	ops  []relay.Operation
	fail *relay.Result
	err  error
}

func (n *nodeNetwork) Do(ctx context.Context, op relay.Operation) (*relay.Result, error) {
	n.mu.Lock()
	n.ops = append(n.ops, op)
	fail, err := n.fail, n.err
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return fail, nil
	}

	field, _ := op.RootField()
	switch field {
	case "me":
		return &relay.Result{Data: []byte(fmt.Sprintf(`{"me":{"userId":%q,"role":"USER"}}`, n.user))}, nil
	case "sendSignal":
		msg := signaling.Message{
			ID:        fmt.Sprintf("%s-%d", n.user, len(n.ops)),
			From:      n.user,
			To:        op.Variables["to"].(string),
			Type:      signaling.Type(op.Variables["type"].(string)),
			Payload:   op.Variables["payload"].(string),
			CreatedAt: time.Now(),
		}
		data, _ := json.Marshal(msg)
		if n.broker != nil {
			if err := n.broker.Publish(ctx, topic.Signal(msg.To), data); err != nil {
				return nil, err
			}
		}
		return &relay.Result{Data: []byte(fmt.Sprintf(`{"sendSignal":{"id":%q}}`, msg.ID))}, nil
	}
	return &relay.Result{Errors: []relay.ResultError{{Message: "unknown field " + field, Code: "BAD_USER_INPUT"}}}, nil
}

func (n *nodeNetwork) setFailure(res *relay.Result, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail, n.err = res, err
}

func (n *nodeNetwork) Ops() []relay.Operation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]relay.Operation(nil), n.ops...)
}

type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	closed bool
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) ApplyLocalDescription(_ context.Context, kind signaling.Type) (string, error) {
	f.record("local:" + string(kind))
	return "sdp-" + string(kind), nil
}

func (f *fakeTransport) ApplyRemoteDescription(_ context.Context, kind signaling.Type, sdp string) error {
	f.record("remote:" + string(kind) + ":" + sdp)
	return nil
}

func (f *fakeTransport) AddICECandidate(_ context.Context, candidate string) error {
	f.record("ice:" + candidate)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type transports struct {
	mu  sync.Mutex
	set map[string]*fakeTransport
}

func newTransports() *transports {
	return &transports{set: make(map[string]*fakeTransport)}
}

func (s *transports) factory(_, remote string, _ signaling.Callbacks) (signaling.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTransport{}
	s.set[remote] = t
	return t, nil
}

func (s *transports) get(remote string) *fakeTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set[remote]
}

// trackingSubscriber records the streams it hands out.
type trackingSubscriber struct {
	inner pubsub.Subscriber

	mu      sync.Mutex
	streams []pubsub.Stream
}

func (s *trackingSubscriber) Subscribe(ctx context.Context, t string) (pubsub.Stream, error) {
	st, err := s.inner.Subscribe(ctx, t)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()
	return st, nil
}

func (s *trackingSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *trackingSubscriber) last() pubsub.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[len(s.streams)-1]
}
