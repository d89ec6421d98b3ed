package signaling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// ============================================================================
// Test doubles
// ============================================================================

type fakeTransport struct {
	mu       sync.Mutex
	calls    []string
	closed   bool
	cb       Callbacks
	localErr error
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) ApplyLocalDescription(ctx context.Context, kind Type) (string, error) {
	f.record("local:" + string(kind))
	if f.localErr != nil {
		return "", f.localErr
	}
	return "sdp-" + string(kind), nil
}

func (f *fakeTransport) ApplyRemoteDescription(ctx context.Context, kind Type, sdp string) error {
	f.record("remote:" + string(kind) + ":" + sdp)
	return nil
}

func (f *fakeTransport) AddICECandidate(ctx context.Context, candidate string) error {
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

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type transportSet struct {
	mu         sync.Mutex
	transports map[string]*fakeTransport
	localErr   error
	factoryErr error
}

func newTransportSet() *transportSet {
	return &transportSet{transports: make(map[string]*fakeTransport)}
}

func (s *transportSet) factory(local, remote string, cb Callbacks) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.factoryErr != nil {
		return nil, s.factoryErr
	}
	t := &fakeTransport{cb: cb, localErr: s.localErr}
	s.transports[remote] = t
	return t, nil
}

func (s *transportSet) get(remote string) *fakeTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transports[remote]
}

type recordingOutbox struct {
	mu   sync.Mutex
	sent []Message
}

func (o *recordingOutbox) Send(ctx context.Context, msg Message) error {
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	o.mu.Unlock()
	return nil
}

func (o *recordingOutbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

func signal(from, to string, t Type, payload string) Message {
	return Message{ID: from + "-" + string(t), From: from, To: to, Type: t, Payload: payload}
}

// ============================================================================
// Relay mode
// ============================================================================

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	var phases []Phase
	r := NewRegistry(WithPhaseObserver(func(_ string, p Phase) { phases = append(phases, p) }))
	key := PairKey("alice", "bob")

	phase, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "v=0 offer"))
	require.NoError(t, err)
	assert.Equal(t, PhaseOffered, phase)

	info, ok := r.Session(key)
	require.True(t, ok)
	assert.Equal(t, "alice", info.Initiator)

	phase, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "v=0 answer"))
	require.NoError(t, err)
	assert.Equal(t, PhaseAnswered, phase)

	phase, err = r.Handle(ctx, signal("bob", "alice", TypeHangup, ""))
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, phase)

	_, ok = r.Session(key)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []Phase{PhaseOffered, PhaseAnswered, PhaseEnded}, phases)

	// A finished pair may negotiate again.
	phase, err = r.Handle(ctx, signal("bob", "alice", TypeOffer, "v=0 offer"))
	require.NoError(t, err)
	assert.Equal(t, PhaseOffered, phase)
}

func TestRegistry_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup []Message
		msg   Message
		err   error
	}{
		{
			name: "duplicate offer",
			setup: []Message{
				signal("alice", "bob", TypeOffer, "o"),
			},
			msg: signal("alice", "bob", TypeOffer, "o2"),
			err: model.ErrConflict,
		},
		{
			name: "crossing offer",
			setup: []Message{
				signal("alice", "bob", TypeOffer, "o"),
			},
			msg: signal("bob", "alice", TypeOffer, "o2"),
			err: model.ErrConflict,
		},
		{
			name: "answer without offer",
			msg:  signal("bob", "alice", TypeAnswer, "a"),
			err:  model.ErrInvalidState,
		},
		{
			name: "answer from initiator",
			setup: []Message{
				signal("alice", "bob", TypeOffer, "o"),
			},
			msg: signal("alice", "bob", TypeAnswer, "a"),
			err: model.ErrInvalidState,
		},
		{
			name: "second answer",
			setup: []Message{
				signal("alice", "bob", TypeOffer, "o"),
				signal("bob", "alice", TypeAnswer, "a"),
			},
			msg: signal("bob", "alice", TypeAnswer, "a"),
			err: model.ErrInvalidState,
		},
		{
			name: "ice without session",
			msg:  signal("alice", "bob", TypeICECandidate, "candidate:1"),
			err:  model.ErrInvalidState,
		},
		{
			name: "signal to self",
			msg:  signal("alice", "alice", TypeOffer, "o"),
			err:  model.ErrForbidden,
		},
		{
			name: "unknown type",
			msg:  signal("alice", "bob", Type("PING"), ""),
			err:  model.ErrBadInput,
		},
		{
			name: "missing recipient",
			msg:  signal("alice", "", TypeOffer, "o"),
			err:  model.ErrBadInput,
		},
		{
			name: "offer without description",
			msg:  signal("alice", "bob", TypeOffer, ""),
			err:  model.ErrBadInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, m := range tt.setup {
				_, err := r.Handle(ctx, m)
				require.NoError(t, err)
			}
			_, err := r.Handle(ctx, tt.msg)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRegistry_HangupWithoutSession(t *testing.T) {
	r := NewRegistry()
	phase, err := r.Handle(context.Background(), signal("alice", "bob", TypeHangup, ""))
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, phase)
	assert.False(t, r.End(PairKey("alice", "bob")))
}

func TestRegistry_BuffersICEUntilAnswered(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	key := PairKey("alice", "bob")

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, err)

	for _, c := range []string{"c1", "c2", "c3"} {
		phase, err := r.Handle(ctx, signal("alice", "bob", TypeICECandidate, c))
		require.NoError(t, err)
		assert.Equal(t, PhaseOffered, phase)
	}
	info, _ := r.Session(key)
	assert.Equal(t, 3, info.PendingICE)

	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	require.NoError(t, err)
	info, _ = r.Session(key)
	assert.Equal(t, 0, info.PendingICE)

	phase, err := r.Handle(ctx, signal("bob", "alice", TypeICECandidate, "c4"))
	require.NoError(t, err)
	assert.Equal(t, PhaseAnswered, phase)
}

func TestRegistry_MalformedFailsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	outbox := &recordingOutbox{}
	r := NewRegistry(WithOutbox(outbox))

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, err)

	phase, err := r.Handle(ctx, signal("alice", "bob", TypeICECandidate, ""))
	assert.ErrorIs(t, err, model.ErrBadInput)
	assert.Equal(t, PhaseFailed, phase)
	assert.Equal(t, 0, r.Len())

	sent := outbox.Sent()
	require.Len(t, sent, 2)
	recipients := []string{sent[0].To, sent[1].To}
	assert.ElementsMatch(t, []string{"alice", "bob"}, recipients)
	for _, m := range sent {
		assert.Equal(t, TypeHangup, m.Type)
		assert.Contains(t, m.Payload, "failed")
		assert.NotEmpty(t, m.ID)
	}
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	key := PairKey("alice", "bob")

	info, err := r.Create("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, key, info.PairKey)
	assert.Equal(t, PhaseIdle, info.Phase)

	_, err = r.Create("alice", "bob")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = r.Create("alice", "alice")
	assert.ErrorIs(t, err, model.ErrForbidden)

	// ICE before any offer is held, and an answer is premature.
	_, err = r.Handle(ctx, signal("alice", "bob", TypeICECandidate, "c1"))
	require.NoError(t, err)
	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	assert.ErrorIs(t, err, model.ErrInvalidState)

	phase, err := r.Handle(ctx, signal("bob", "alice", TypeOffer, "o"))
	require.NoError(t, err)
	assert.Equal(t, PhaseOffered, phase)

	info, _ = r.Session(key)
	assert.Equal(t, "bob", info.Initiator)
	assert.Equal(t, 1, info.PendingICE)

	assert.True(t, r.End(key))
	_, ok := r.Session(key)
	assert.False(t, ok)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_UnestablishedSessionExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	outbox := &recordingOutbox{}
	var phases []Phase
	r := NewRegistry(
		WithOutbox(outbox),
		WithClock(clock.Now),
		WithEstablishTimeout(30*time.Second),
		WithPhaseObserver(func(_ string, p Phase) { phases = append(phases, p) }),
	)

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o1"))
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	_, err = r.Handle(ctx, signal("alice", "bob", TypeOffer, "o2"))
	assert.ErrorIs(t, err, model.ErrConflict)

	// Past the timeout the unanswered offer no longer blocks the pair.
	clock.Advance(15 * time.Second)
	phase, err := r.Handle(ctx, signal("bob", "alice", TypeOffer, "o3"))
	require.NoError(t, err)
	assert.Equal(t, PhaseOffered, phase)

	info, ok := r.Session(PairKey("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, "bob", info.Initiator)
	assert.Equal(t, []Phase{PhaseOffered, PhaseFailed, PhaseOffered}, phases)

	sent := outbox.Sent()
	require.Len(t, sent, 2)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string{sent[0].To, sent[1].To})
	for _, m := range sent {
		assert.Equal(t, TypeHangup, m.Type)
		assert.Contains(t, m.Payload, "not established in time")
	}
}

func TestRegistry_LateAnswerAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(WithClock(clock.Now), WithEstablishTimeout(30*time.Second))

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CreatedSessionExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(WithClock(clock.Now), WithEstablishTimeout(30*time.Second))

	_, err := r.Create("alice", "bob")
	require.NoError(t, err)
	_, err = r.Create("alice", "bob")
	assert.ErrorIs(t, err, model.ErrConflict)

	clock.Advance(31 * time.Second)
	_, err = r.Create("alice", "bob")
	assert.NoError(t, err)
}

func TestRegistry_ExpiryDisabled(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(WithClock(clock.Now), WithEstablishTimeout(0))

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	assert.NoError(t, err)
}

func TestRegistry_Local_CreateRequiresLocalUser(t *testing.T) {
	r, ts, _ := newLocalRegistry("alice")
	_, err := r.Create("bob", "carol")
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = r.Create("alice", "bob")
	require.NoError(t, err)
	r.wait(PairKey("alice", "bob"))
	assert.NotNil(t, ts.get("bob"))
}

func TestRegistry_Concurrent(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "o")); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

// ============================================================================
// Agent mode
// ============================================================================

func newLocalRegistry(local string) (*Registry, *transportSet, *recordingOutbox) {
	ts := newTransportSet()
	outbox := &recordingOutbox{}
	r := NewRegistry(
		WithLocal(local, ts.factory),
		WithOutbox(outbox),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	return r, ts, outbox
}

func TestRegistry_Local_RejectsForeignRecipient(t *testing.T) {
	r, _, _ := newLocalRegistry("bob")
	_, err := r.Handle(context.Background(), signal("alice", "carol", TypeOffer, "o"))
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestRegistry_Local_AnswerFlushesBufferedICEInOrder(t *testing.T) {
	ctx := context.Background()
	r, ts, outbox := newLocalRegistry("bob")
	key := PairKey("alice", "bob")

	_, err := r.Handle(ctx, signal("alice", "bob", TypeOffer, "offer-sdp"))
	require.NoError(t, err)
	_, err = r.Handle(ctx, signal("alice", "bob", TypeICECandidate, "c1"))
	require.NoError(t, err)
	_, err = r.Handle(ctx, signal("alice", "bob", TypeICECandidate, "c2"))
	require.NoError(t, err)

	r.wait(key)
	tr := ts.get("alice")
	require.NotNil(t, tr)
	assert.Equal(t, []string{"remote:OFFER:offer-sdp"}, tr.Calls())

	phase, err := r.Answer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, PhaseAnswered, phase)

	_, err = r.Handle(ctx, signal("alice", "bob", TypeICECandidate, "c3"))
	require.NoError(t, err)

	r.wait(key)
	assert.Equal(t, []string{
		"remote:OFFER:offer-sdp",
		"local:ANSWER",
		"ice:c1",
		"ice:c2",
		"ice:c3",
	}, tr.Calls())

	sent := outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, TypeAnswer, sent[0].Type)
	assert.Equal(t, "bob", sent[0].From)
	assert.Equal(t, "alice", sent[0].To)
	assert.Equal(t, "sdp-ANSWER", sent[0].Payload)
	assert.Equal(t, time.Unix(1700000000, 0), sent[0].CreatedAt)
}

func TestRegistry_Local_AnswerRequiresPendingOffer(t *testing.T) {
	r, _, _ := newLocalRegistry("bob")
	_, err := r.Answer(context.Background(), "alice")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = r.Answer(context.Background(), "bob")
	assert.ErrorIs(t, err, model.ErrBadInput)
}

func TestRegistry_Local_OfferAndRemoteAnswer(t *testing.T) {
	ctx := context.Background()
	r, ts, outbox := newLocalRegistry("alice")
	key := PairKey("alice", "bob")

	phase, err := r.Offer(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, PhaseOffered, phase)

	_, err = r.Offer(ctx, "bob")
	assert.ErrorIs(t, err, model.ErrConflict)

	r.wait(key)
	sent := outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, TypeOffer, sent[0].Type)
	assert.Equal(t, "sdp-OFFER", sent[0].Payload)

	phase, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "answer-sdp"))
	require.NoError(t, err)
	assert.Equal(t, PhaseAnswered, phase)

	r.wait(key)
	tr := ts.get("bob")
	assert.Equal(t, []string{"local:OFFER", "remote:ANSWER:answer-sdp"}, tr.Calls())
}

func TestRegistry_Local_TransportCallbacks(t *testing.T) {
	ctx := context.Background()
	r, ts, outbox := newLocalRegistry("alice")
	key := PairKey("alice", "bob")

	_, err := r.Offer(ctx, "bob")
	require.NoError(t, err)
	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	require.NoError(t, err)
	r.wait(key)

	tr := ts.get("bob")
	tr.cb.OnICECandidate("local-c1")
	tr.cb.OnConnected()
	r.wait(key)

	info, ok := r.Session(key)
	require.True(t, ok)
	assert.Equal(t, PhaseConnected, info.Phase)

	sent := outbox.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, TypeICECandidate, sent[1].Type)
	assert.Equal(t, "local-c1", sent[1].Payload)

	tr.cb.OnError(errors.New("dtls handshake failed"))
	_, ok = r.Session(key)
	assert.False(t, ok)
	assert.Eventually(t, tr.Closed, time.Second, 5*time.Millisecond)

	sent = outbox.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, TypeHangup, sent[2].Type)
	assert.Equal(t, "bob", sent[2].To)
	assert.Contains(t, sent[2].Payload, "dtls handshake failed")

	// Callbacks from a finished session are ignored.
	tr.cb.OnConnected()
	tr.cb.OnICECandidate("late")
	assert.Len(t, outbox.Sent(), 3)
}

func TestRegistry_Local_ConnectedSessionDoesNotExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	ts := newTransportSet()
	r := NewRegistry(
		WithLocal("alice", ts.factory),
		WithOutbox(&recordingOutbox{}),
		WithClock(clock.Now),
		WithEstablishTimeout(30*time.Second),
	)
	key := PairKey("alice", "bob")

	_, err := r.Offer(ctx, "bob")
	require.NoError(t, err)
	_, err = r.Handle(ctx, signal("bob", "alice", TypeAnswer, "a"))
	require.NoError(t, err)
	r.wait(key)
	ts.get("bob").cb.OnConnected()

	clock.Advance(time.Hour)
	_, err = r.Offer(ctx, "bob")
	assert.ErrorIs(t, err, model.ErrConflict)

	info, ok := r.Session(key)
	require.True(t, ok)
	assert.Equal(t, PhaseConnected, info.Phase)
}

func TestRegistry_Local_RemoteCloseEnds(t *testing.T) {
	ctx := context.Background()
	r, ts, _ := newLocalRegistry("alice")
	key := PairKey("alice", "bob")

	_, err := r.Offer(ctx, "bob")
	require.NoError(t, err)
	r.wait(key)

	ts.get("bob").cb.OnClose()
	_, ok := r.Session(key)
	assert.False(t, ok)
}

func TestRegistry_Local_Hangup(t *testing.T) {
	ctx := context.Background()
	r, ts, outbox := newLocalRegistry("alice")
	key := PairKey("alice", "bob")

	_, err := r.Offer(ctx, "bob")
	require.NoError(t, err)
	r.wait(key)

	require.NoError(t, r.Hangup(ctx, "bob"))
	assert.Eventually(t, ts.get("bob").Closed, time.Second, 5*time.Millisecond)

	sent := outbox.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, TypeHangup, sent[1].Type)

	// Hanging up again is a no-op.
	require.NoError(t, r.Hangup(ctx, "bob"))
	assert.Len(t, outbox.Sent(), 2)
}

func TestRegistry_Local_TransportErrorsFail(t *testing.T) {
	ctx := context.Background()

	t.Run("factory", func(t *testing.T) {
		r, ts, outbox := newLocalRegistry("alice")
		ts.factoryErr = errors.New("no ice servers")

		_, err := r.Offer(ctx, "bob")
		require.NoError(t, err)
		assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
		assert.Eventually(t, func() bool { return len(outbox.Sent()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, TypeHangup, outbox.Sent()[0].Type)
	})

	t.Run("local description", func(t *testing.T) {
		r, ts, _ := newLocalRegistry("alice")
		ts.localErr = errors.New("codec mismatch")

		_, err := r.Offer(ctx, "bob")
		require.NoError(t, err)
		assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
		assert.Eventually(t, func() bool {
			tr := ts.get("bob")
			return tr != nil && tr.Closed()
		}, time.Second, 5*time.Millisecond)
	})
}

func TestRegistry_Local_RequiresLocalUser(t *testing.T) {
	r := NewRegistry()
	_, err := r.Offer(context.Background(), "bob")
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

// ============================================================================
// Helpers
// ============================================================================

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	a, b := SplitPairKey(PairKey("bob", "alice"))
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "OFFERED", PhaseOffered.String())
	assert.Equal(t, "UNKNOWN", Phase(42).String())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseConnected.Terminal())

	text, err := PhaseAnswered.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ANSWERED", string(text))
}

func TestSerial_PreservesOrder(t *testing.T) {
	s := newSerial()
	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		n := i
		s.submit(func() {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		})
	}
	s.wait()

	require.Len(t, got, 100)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}
