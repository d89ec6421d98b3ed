// Package publisher commits side-effecting operations to the data layer and,
// once a commit succeeds, publishes the result on every topic derived from it.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/storage"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Publisher runs mutations. Commit errors are returned unchanged and never
// retried; publish errors are logged and counted but never returned, since
// the mutation itself has already taken effect.
type Publisher struct {
	store     storage.Store
	broker    pubsub.Publisher
	indexer   storage.Indexer
	signaling *signaling.Registry
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Publisher)

func WithIndexer(idx storage.Indexer) Option {
	return func(p *Publisher) { p.indexer = idx }
}

// WithSignaling sets the registry that validates signals before they are
// relayed. It must not be bound to a local user.
func WithSignaling(r *signaling.Registry) Option {
	return func(p *Publisher) { p.signaling = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(p *Publisher) { p.newID = fn }
}

func New(store storage.Store, broker pubsub.Publisher, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		broker:  broker,
		indexer: storage.NopIndexer{},
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.signaling == nil {
		p.signaling = signaling.NewRegistry(
			signaling.WithLogger(p.logger),
			signaling.WithOutbox(signaling.BrokerOutbox(broker)),
			signaling.WithClock(p.now),
		)
	}
	p.logger = p.logger.With("component", "publisher")
	return p
}

// Signaling returns the registry tracking relayed signaling sessions.
func (p *Publisher) Signaling() *signaling.Registry {
	return p.signaling
}

// publish sends v, JSON encoded, to every topic. Failures are logged and
// counted per topic; the remaining topics are still attempted.
func (p *Publisher) publish(ctx context.Context, op string, v any, topics ...string) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("Failed to encode event", "op", op, "error", err)
		publishFailures.WithLabelValues(op).Add(float64(len(topics)))
		return
	}
	for _, t := range topics {
		if err := p.broker.Publish(ctx, t, payload); err != nil {
			p.logger.Warn("Failed to publish event", "op", op, "topic", t, "error", err)
			publishFailures.WithLabelValues(op).Inc()
			continue
		}
		published.WithLabelValues(op).Inc()
	}
}

// caller returns the identity in ctx or model.ErrUnauthenticated.
func caller(ctx context.Context) (*identity.Identity, error) {
	return identity.Require(ctx)
}

// canModify reports whether id may change an entity owned by ownerID.
func canModify(id *identity.Identity, ownerID string) bool {
	return id.IsAdmin() || id.UserID == ownerID
}

func forbidden(id *identity.Identity, action string) error {
	return model.NewError(model.KindForbidden, "user %s may not %s", id.UserID, action)
}

func badInput(format string, args ...any) error {
	return model.NewError(model.KindBadInput, format, args...)
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
