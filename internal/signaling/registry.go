package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// session is the negotiation state of one pair. Fields are guarded by
// Registry.mu; transport work for the session runs on exec in order.
type session struct {
	key        string
	initiator  string
	phase      Phase
	pendingICE []string
	transport  Transport
	exec       *serial
	// since is when the session entered its current negotiating phase.
	since time.Time
}

// DefaultEstablishTimeout bounds how long a session may stay IDLE, OFFERED
// or ANSWERED before it is failed.
const DefaultEstablishTimeout = 30 * time.Second

var errEstablishTimeout = errors.New("session was not established in time")

// SessionInfo is a snapshot of a session.
type SessionInfo struct {
	PairKey    string `json:"pairKey"`
	Initiator  string `json:"initiator"`
	Phase      Phase  `json:"phase"`
	PendingICE int    `json:"pendingIce"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLocal binds the registry to one user and drives a transport per
// session. Only messages addressed to userID are accepted by Handle.
func WithLocal(userID string, factory TransportFactory) Option {
	return func(r *Registry) {
		r.local = userID
		r.factory = factory
	}
}

// WithOutbox sets where outbound messages and failure notices are sent.
func WithOutbox(o Outbox) Option {
	return func(r *Registry) { r.outbox = o }
}

// WithPhaseObserver registers fn to be called after every phase change.
func WithPhaseObserver(fn func(pairKey string, phase Phase)) Option {
	return func(r *Registry) { r.observe = fn }
}

// WithEstablishTimeout overrides DefaultEstablishTimeout. A non-positive d
// disables expiry.
func WithEstablishTimeout(d time.Duration) Option {
	return func(r *Registry) { r.establishTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// Registry owns every session, keyed by PairKey. All methods are safe for
// concurrent use. No lock is held while calling a transport or the outbox.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	local   string
	factory TransportFactory
	outbox  Outbox
	observe func(string, Phase)
	now     func() time.Time
	logger  *slog.Logger

	establishTimeout time.Duration
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:         make(map[string]*session),
		now:              time.Now,
		logger:           slog.Default(),
		establishTimeout: DefaultEstablishTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "signaling")
	if r.local != "" {
		r.logger = r.logger.With("local", r.local)
	}
	return r
}

// Session returns a snapshot of the session for pairKey.
func (r *Registry) Session(pairKey string) (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[pairKey]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		PairKey:    s.key,
		Initiator:  s.initiator,
		Phase:      s.phase,
		PendingICE: len(s.pendingICE),
	}, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Handle applies an inbound message and returns the resulting phase.
func (r *Registry) Handle(ctx context.Context, msg Message) (Phase, error) {
	if err := msg.validate(); err != nil {
		return PhaseIdle, err
	}
	if r.local != "" && msg.To != r.local {
		return PhaseIdle, model.NewError(model.KindForbidden, "signal addressed to %s delivered to %s", msg.To, r.local)
	}

	ctx = context.WithoutCancel(ctx)
	key := PairKey(msg.From, msg.To)
	switch msg.Type {
	case TypeOffer:
		return r.handleOffer(ctx, key, msg)
	case TypeAnswer:
		return r.handleAnswer(ctx, key, msg)
	case TypeICECandidate:
		return r.handleICE(ctx, key, msg)
	default:
		return r.handleHangup(key), nil
	}
}

func (r *Registry) handleOffer(ctx context.Context, key string, msg Message) (Phase, error) {
	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s != nil && s.phase != PhaseIdle {
		r.mu.Unlock()
		return s.phase, model.NewError(model.KindConflict, "session %s already in progress", key)
	}
	if msg.Payload == "" {
		r.mu.Unlock()
		r.expire(ctx, expired)
		return PhaseIdle, model.NewError(model.KindBadInput, "offer requires a session description")
	}

	if s == nil {
		s = r.newSessionLocked(key)
	}
	s.phase = PhaseOffered
	s.since = r.now()
	s.initiator = msg.From
	if r.factory != nil {
		sdp := msg.Payload
		s.exec.submit(func() {
			r.withTransport(ctx, s, func(t Transport) error {
				return t.ApplyRemoteDescription(ctx, TypeOffer, sdp)
			})
		})
	}
	r.mu.Unlock()

	r.expire(ctx, expired)
	r.notePhase(key, PhaseOffered)
	return PhaseOffered, nil
}

func (r *Registry) handleAnswer(ctx context.Context, key string, msg Message) (Phase, error) {
	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s == nil || s.phase != PhaseOffered {
		phase := PhaseIdle
		if s != nil {
			phase = s.phase
		}
		r.mu.Unlock()
		r.expire(ctx, expired)
		return phase, model.NewError(model.KindInvalidState, "answer for %s without a pending offer", key)
	}
	if msg.From == s.initiator {
		r.mu.Unlock()
		return s.phase, model.NewError(model.KindInvalidState, "answer for %s must come from the callee", key)
	}
	if msg.Payload == "" {
		r.mu.Unlock()
		err := model.NewError(model.KindBadInput, "answer requires a session description")
		r.fail(ctx, s, err)
		return PhaseFailed, err
	}

	s.phase = PhaseAnswered
	s.since = r.now()
	pending := s.pendingICE
	s.pendingICE = nil
	if r.factory != nil {
		sdp := msg.Payload
		s.exec.submit(func() {
			r.withTransport(ctx, s, func(t Transport) error {
				return t.ApplyRemoteDescription(ctx, TypeAnswer, sdp)
			})
		})
		r.flushICELocked(ctx, s, pending)
	}
	r.mu.Unlock()

	r.notePhase(key, PhaseAnswered)
	return PhaseAnswered, nil
}

func (r *Registry) handleICE(ctx context.Context, key string, msg Message) (Phase, error) {
	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s == nil || s.phase.Terminal() {
		r.mu.Unlock()
		r.expire(ctx, expired)
		return PhaseIdle, model.NewError(model.KindInvalidState, "ice candidate for %s without a session", key)
	}
	if msg.Payload == "" {
		r.mu.Unlock()
		err := model.NewError(model.KindBadInput, "ice candidate is empty")
		r.fail(ctx, s, err)
		return PhaseFailed, err
	}

	phase := s.phase
	if phase >= PhaseAnswered {
		if r.factory != nil {
			r.flushICELocked(ctx, s, []string{msg.Payload})
		}
	} else {
		s.pendingICE = append(s.pendingICE, msg.Payload)
	}
	r.mu.Unlock()
	return phase, nil
}

func (r *Registry) handleHangup(key string) Phase {
	r.mu.Lock()
	s := r.sessions[key]
	if s == nil {
		r.mu.Unlock()
		return PhaseEnded
	}
	r.endLocked(s, PhaseEnded)
	r.mu.Unlock()

	r.notePhase(key, PhaseEnded)
	return PhaseEnded
}

// End terminates the session for pairKey, if any, and reports whether one existed.
func (r *Registry) End(pairKey string) bool {
	r.mu.Lock()
	s := r.sessions[pairKey]
	if s == nil {
		r.mu.Unlock()
		return false
	}
	r.endLocked(s, PhaseEnded)
	r.mu.Unlock()

	r.notePhase(pairKey, PhaseEnded)
	return true
}

// Create registers an IDLE session between a and b ahead of the first OFFER.
// With a local user, one of a and b must be that user.
func (r *Registry) Create(a, b string) (SessionInfo, error) {
	if a == "" || b == "" {
		return SessionInfo{}, model.NewError(model.KindBadInput, "session requires two users")
	}
	if a == b {
		return SessionInfo{}, model.NewError(model.KindForbidden, "cannot open a session with yourself")
	}
	if r.local != "" && a != r.local && b != r.local {
		return SessionInfo{}, model.NewError(model.KindForbidden, "session %s does not involve %s", PairKey(a, b), r.local)
	}
	key := PairKey(a, b)

	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s != nil {
		r.mu.Unlock()
		return SessionInfo{}, model.NewError(model.KindConflict, "session %s already exists", key)
	}
	s = r.newSessionLocked(key)
	info := SessionInfo{PairKey: key, Phase: s.phase}
	r.mu.Unlock()

	r.expire(context.Background(), expired)
	r.notePhase(key, PhaseIdle)
	return info, nil
}

// Offer starts a session from the local user to remote and sends the OFFER.
func (r *Registry) Offer(ctx context.Context, remote string) (Phase, error) {
	if err := r.checkRemote(remote); err != nil {
		return PhaseIdle, err
	}
	ctx = context.WithoutCancel(ctx)
	key := PairKey(r.local, remote)

	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s != nil && s.phase != PhaseIdle {
		r.mu.Unlock()
		return s.phase, model.NewError(model.KindConflict, "session %s already in progress", key)
	}
	if s == nil {
		s = r.newSessionLocked(key)
	}
	s.phase = PhaseOffered
	s.since = r.now()
	s.initiator = r.local
	s.exec.submit(func() {
		r.withTransport(ctx, s, func(t Transport) error {
			sdp, err := t.ApplyLocalDescription(ctx, TypeOffer)
			if err != nil {
				return err
			}
			return r.send(ctx, remote, TypeOffer, sdp)
		})
	})
	r.mu.Unlock()

	r.expire(ctx, expired)
	r.notePhase(key, PhaseOffered)
	return PhaseOffered, nil
}

// Answer accepts the pending offer from remote and sends the ANSWER.
func (r *Registry) Answer(ctx context.Context, remote string) (Phase, error) {
	if err := r.checkRemote(remote); err != nil {
		return PhaseIdle, err
	}
	ctx = context.WithoutCancel(ctx)
	key := PairKey(r.local, remote)

	r.mu.Lock()
	s, expired := r.liveLocked(key)
	if s == nil || s.phase != PhaseOffered || s.initiator != remote {
		r.mu.Unlock()
		r.expire(ctx, expired)
		return PhaseIdle, model.NewError(model.KindInvalidState, "no pending offer from %s", remote)
	}
	s.phase = PhaseAnswered
	s.since = r.now()
	pending := s.pendingICE
	s.pendingICE = nil
	s.exec.submit(func() {
		r.withTransport(ctx, s, func(t Transport) error {
			sdp, err := t.ApplyLocalDescription(ctx, TypeAnswer)
			if err != nil {
				return err
			}
			return r.send(ctx, remote, TypeAnswer, sdp)
		})
	})
	r.flushICELocked(ctx, s, pending)
	r.mu.Unlock()

	r.notePhase(key, PhaseAnswered)
	return PhaseAnswered, nil
}

// Hangup ends the session with remote and notifies it.
func (r *Registry) Hangup(ctx context.Context, remote string) error {
	if err := r.checkRemote(remote); err != nil {
		return err
	}
	if !r.End(PairKey(r.local, remote)) {
		return nil
	}
	return r.send(ctx, remote, TypeHangup, "")
}

func (r *Registry) checkRemote(remote string) error {
	if r.local == "" {
		return model.NewError(model.KindInvalidState, "registry is not bound to a local user")
	}
	if remote == "" || remote == r.local {
		return model.NewError(model.KindBadInput, "invalid remote user %q", remote)
	}
	return nil
}

// newSessionLocked inserts an IDLE session and, with a factory, queues
// creation of its transport ahead of any other work.
func (r *Registry) newSessionLocked(key string) *session {
	s := &session{
		key:   key,
		phase: PhaseIdle,
		exec:  newSerial(),
		since: r.now(),
	}
	r.sessions[key] = s
	if r.factory != nil {
		r.startTransportLocked(s)
	}
	return s
}

func (r *Registry) remoteOf(s *session) string {
	a, b := SplitPairKey(s.key)
	if a == r.local {
		return b
	}
	return a
}

func (r *Registry) startTransportLocked(s *session) {
	remote := r.remoteOf(s)
	cb := r.callbacks(s, remote)
	s.exec.submit(func() {
		t, err := r.factory(r.local, remote, cb)
		if err != nil {
			r.fail(context.Background(), s, fmt.Errorf("failed to create transport: %w", err))
			return
		}
		r.mu.Lock()
		if r.sessions[s.key] != s || s.phase.Terminal() {
			r.mu.Unlock()
			_ = t.Close()
			return
		}
		s.transport = t
		r.mu.Unlock()
	})
}

func (r *Registry) flushICELocked(ctx context.Context, s *session, candidates []string) {
	for _, c := range candidates {
		candidate := c
		s.exec.submit(func() {
			r.withTransport(ctx, s, func(t Transport) error {
				return t.AddICECandidate(ctx, candidate)
			})
		})
	}
}

// withTransport runs op against the live transport of s, failing the
// session when op returns an error.
func (r *Registry) withTransport(ctx context.Context, s *session, op func(Transport) error) {
	r.mu.Lock()
	t := s.transport
	live := r.sessions[s.key] == s && !s.phase.Terminal()
	r.mu.Unlock()
	if t == nil || !live {
		return
	}
	if err := op(t); err != nil {
		r.fail(ctx, s, err)
	}
}

func (r *Registry) endLocked(s *session, phase Phase) {
	s.phase = phase
	s.pendingICE = nil
	delete(r.sessions, s.key)
	s.exec.submit(func() {
		r.mu.Lock()
		t := s.transport
		s.transport = nil
		r.mu.Unlock()
		if t != nil {
			if err := t.Close(); err != nil {
				r.logger.Debug("Transport close failed", "pair", s.key, "error", err)
			}
		}
	})
}

// liveLocked returns the session for key. A session still negotiating after
// the establishment timeout is failed and returned as expired instead; the
// caller passes it to expire once r.mu is released.
func (r *Registry) liveLocked(key string) (s, expired *session) {
	s = r.sessions[key]
	if s == nil || r.establishTimeout <= 0 || s.phase >= PhaseConnected {
		return s, nil
	}
	if r.now().Sub(s.since) < r.establishTimeout {
		return s, nil
	}
	r.endLocked(s, PhaseFailed)
	return nil, s
}

func (r *Registry) expire(ctx context.Context, s *session) {
	if s == nil {
		return
	}
	r.logger.Info("Signaling session timed out", "pair", s.key, "initiator", s.initiator)
	r.notePhase(s.key, PhaseFailed)
	r.announceFailure(ctx, s, errEstablishTimeout)
}

// fail moves s to FAILED and announces the failure with a HANGUP.
func (r *Registry) fail(ctx context.Context, s *session, cause error) {
	r.mu.Lock()
	if r.sessions[s.key] != s || s.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	r.endLocked(s, PhaseFailed)
	r.mu.Unlock()

	r.logger.Warn("Signaling session failed", "pair", s.key, "error", cause)
	r.notePhase(s.key, PhaseFailed)
	r.announceFailure(ctx, s, cause)
}

func (r *Registry) announceFailure(ctx context.Context, s *session, cause error) {
	if r.outbox == nil {
		return
	}
	reason := "failed: " + cause.Error()
	a, b := SplitPairKey(s.key)

	var notices []Message
	if r.local != "" {
		notices = append(notices, r.message(r.local, r.remoteOf(s), TypeHangup, reason))
	} else {
		notices = append(notices,
			r.message(a, b, TypeHangup, reason),
			r.message(b, a, TypeHangup, reason))
	}
	for _, n := range notices {
		if err := r.outbox.Send(ctx, n); err != nil {
			r.logger.Warn("Failed to announce session failure", "pair", s.key, "to", n.To, "error", err)
		}
	}
}

func (r *Registry) callbacks(s *session, remote string) Callbacks {
	return Callbacks{
		OnICECandidate: func(candidate string) {
			r.mu.Lock()
			live := r.sessions[s.key] == s && !s.phase.Terminal()
			r.mu.Unlock()
			if !live {
				return
			}
			s.exec.submit(func() {
				if err := r.send(context.Background(), remote, TypeICECandidate, candidate); err != nil {
					r.logger.Warn("Failed to send ice candidate", "pair", s.key, "error", err)
				}
			})
		},
		OnConnected: func() {
			r.mu.Lock()
			changed := r.sessions[s.key] == s && s.phase == PhaseAnswered
			if changed {
				s.phase = PhaseConnected
			}
			r.mu.Unlock()
			if changed {
				r.notePhase(s.key, PhaseConnected)
			}
		},
		OnError: func(err error) {
			r.fail(context.Background(), s, err)
		},
		OnClose: func() {
			r.mu.Lock()
			live := r.sessions[s.key] == s && !s.phase.Terminal()
			if live {
				r.endLocked(s, PhaseEnded)
			}
			r.mu.Unlock()
			if live {
				r.notePhase(s.key, PhaseEnded)
			}
		},
	}
}

func (r *Registry) message(from, to string, t Type, payload string) Message {
	return Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      t,
		Payload:   payload,
		CreatedAt: r.now(),
	}
}

func (r *Registry) send(ctx context.Context, to string, t Type, payload string) error {
	if r.outbox == nil {
		return nil
	}
	return r.outbox.Send(ctx, r.message(r.local, to, t, payload))
}

func (r *Registry) notePhase(key string, phase Phase) {
	r.logger.Debug("Signaling phase changed", "pair", key, "phase", phase.String())
	if r.observe != nil {
		r.observe(key, phase)
	}
}

// wait blocks until queued transport work for pairKey has drained. Test hook.
func (r *Registry) wait(pairKey string) {
	r.mu.Lock()
	s := r.sessions[pairKey]
	r.mu.Unlock()
	if s != nil {
		s.exec.wait()
	}
}
