// Package peer runs WebRTC call negotiation for the relay's user. Signals
// arrive over the node's realtime socket and leave through the sendSignal
// mutation; the relay socket's call frames drive it.
package peer

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/relay/config"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Service owns the signaling agent of the relay's user.
type Service struct {
	cfg        config.SignalConfig
	network    relay.Network
	subscriber pubsub.Subscriber
	factory    signaling.TransportFactory
	logger     *slog.Logger

	mu    sync.Mutex
	agent *signaling.Agent
}

var _ relay.Caller = (*Service)(nil)

func New(cfg config.SignalConfig, network relay.Network, subscriber pubsub.Subscriber, factory signaling.TransportFactory) *Service {
	return &Service{
		cfg:        cfg,
		network:    network,
		subscriber: subscriber,
		factory:    factory,
		logger:     slog.Default().With("component", "relay.peer"),
	}
}

// Run resolves the user, then keeps the agent subscribed until ctx is done.
// Failures are retried with jittered exponential backoff.
func (s *Service) Run(ctx context.Context) {
	delay := s.cfg.InitialBackoff
	for ctx.Err() == nil {
		agent, err := s.ensureAgent(ctx)
		if err == nil {
			err = agent.Run(ctx)
		}
		if ctx.Err() != nil {
			return
		}

		wait := jitter(delay)
		switch {
		case err == nil:
			delay = s.cfg.InitialBackoff
			wait = jitter(delay)
			s.logger.Info("Signal stream closed", "retry_in", wait)
		case model.KindOf(err) == model.KindUnauthenticated:
			s.logger.Error("Signaling rejected by node", "error", err, "retry_in", wait)
		default:
			s.logger.Warn("Signaling disconnected", "error", err, "retry_in", wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err != nil {
			delay = min(delay*2, s.cfg.MaxBackoff)
		}
	}
}

func (s *Service) ensureAgent(ctx context.Context) (*signaling.Agent, error) {
	s.mu.Lock()
	agent := s.agent
	s.mu.Unlock()
	if agent != nil {
		return agent, nil
	}

	user, err := whoami(ctx, s.network)
	if err != nil {
		return nil, err
	}
	agent = signaling.NewAgent(user, s.subscriber, NetworkOutbox(s.network), s.factory,
		signaling.WithEstablishTimeout(s.cfg.EstablishTimeout))

	s.mu.Lock()
	s.agent = agent
	s.mu.Unlock()
	s.logger.Info("Signaling agent ready", "user", user)
	return agent, nil
}

// User returns the resolved user, or "" before Run has reached the node.
func (s *Service) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent == nil {
		return ""
	}
	return s.agent.User()
}

func (s *Service) current() (*signaling.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent == nil {
		return nil, model.NewError(model.KindInvalidState, "signaling is not connected yet")
	}
	return s.agent, nil
}

func (s *Service) Call(ctx context.Context, remote string) error {
	agent, err := s.current()
	if err != nil {
		return err
	}
	return agent.Call(ctx, remote)
}

func (s *Service) Accept(ctx context.Context, remote string) error {
	agent, err := s.current()
	if err != nil {
		return err
	}
	return agent.Accept(ctx, remote)
}

func (s *Service) Hangup(ctx context.Context, remote string) error {
	agent, err := s.current()
	if err != nil {
		return err
	}
	return agent.Hangup(ctx, remote)
}

// jitter spreads d by +/-20%.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}
