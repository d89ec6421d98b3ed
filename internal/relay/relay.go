// Package relay executes UI operations through a cache-first, network-fallback
// path. Reads are answered from the cache when possible so that earlier
// results stay available while the upstream is unreachable; writes always go
// to the network. Subscriptions are not relayed.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/switchboard/internal/relay/cache"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// Relay executes operations. It is safe for concurrent use.
type Relay struct {
	cache   cache.Cache
	network Network
	logger  *slog.Logger
	now     func() time.Time

	// storeMu orders cache stores against invalidation. Reads store under
	// the read lock; a write bumps generation and invalidates under the
	// write lock, so a read that started before the write cannot store its
	// older result afterwards.
	storeMu    sync.RWMutex
	generation uint64
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func New(c cache.Cache, network Network, opts ...Option) *Relay {
	r := &Relay{
		cache:   c,
		network: network,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "relay")
	return r
}

// Execute runs op and returns its result. A result carrying upstream errors
// is returned as is; the error return is reserved for failures to obtain a
// result at all. Network failures surface as NetworkError and are never
// retried or answered from a stale entry.
func (r *Relay) Execute(ctx context.Context, op Operation) (*Result, error) {
	if op.Text == "" {
		return nil, model.NewError(model.KindBadInput, "operation text is required")
	}
	kind, err := op.Kind()
	if err != nil {
		return nil, model.Wrap(model.KindBadInput, err, "invalid operation")
	}

	switch kind {
	case KindQuery:
		return r.read(ctx, op)
	case KindMutation:
		return r.write(ctx, op)
	default:
		return nil, model.NewError(model.KindBadInput, "subscriptions are served on /v1/realtime, not through the relay")
	}
}

func (r *Relay) read(ctx context.Context, op Operation) (*Result, error) {
	sig, err := Signature(op)
	if err != nil {
		return nil, model.Wrap(model.KindBadInput, err, "invalid operation")
	}

	if !op.ForceRefresh {
		entry, err := r.cache.Get(ctx, sig)
		switch {
		case err == nil:
			cacheHits.Inc()
			return &Result{Data: entry.Data}, nil
		case errors.Is(err, cache.ErrMiss):
			cacheMisses.Inc()
		default:
			cacheMisses.Inc()
			r.logger.Warn("Cache lookup failed", "signature", sig, "error", err)
		}
	}
	if op.UseCache {
		return nil, model.NewError(model.KindNotFound, "no cached result for operation")
	}

	r.storeMu.RLock()
	gen := r.generation
	r.storeMu.RUnlock()

	res, err := r.forward(ctx, KindQuery, op)
	if err != nil {
		return nil, err
	}
	if res.OK() {
		r.store(ctx, sig, gen, res)
	}
	return res, nil
}

// store caches res unless a write completed since gen was read.
func (r *Relay) store(ctx context.Context, sig string, gen uint64, res *Result) {
	r.storeMu.RLock()
	defer r.storeMu.RUnlock()
	if r.generation != gen {
		r.logger.Debug("Dropping read result older than the last write", "signature", sig)
		return
	}
	if err := r.cache.Put(ctx, sig, cache.Entry{Data: res.Data, StoredAt: r.now().UnixNano()}); err != nil {
		r.logger.Warn("Failed to cache result", "signature", sig, "error", err)
	}
}

// write forwards a mutation. A successful write drops every cached read, as
// the relay cannot tell which reads it affected.
func (r *Relay) write(ctx context.Context, op Operation) (*Result, error) {
	res, err := r.forward(ctx, KindMutation, op)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) == 0 {
		r.storeMu.Lock()
		r.generation++
		err := r.cache.Invalidate(context.WithoutCancel(ctx))
		r.storeMu.Unlock()
		if err != nil {
			r.logger.Warn("Failed to invalidate cache after write", "error", err)
		}
	}
	return res, nil
}

func (r *Relay) forward(ctx context.Context, kind OperationKind, op Operation) (*Result, error) {
	res, err := r.network.Do(ctx, op)
	if err != nil {
		if errors.Is(err, model.ErrNetwork) {
			networkErrors.WithLabelValues(string(kind)).Inc()
		}
		r.logger.Debug("Operation failed", "kind", kind, "name", op.Name, "error", err)
		return nil, err
	}
	return res, nil
}

// Request is one operation submitted for a reply.
type Request struct {
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
}

// Reply types
const (
	ReplyTypeResult = "result"
	ReplyTypeError  = "error"
)

// Reply is the single terminal answer to a request.
type Reply struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ReplyError     `json:"error,omitempty"`
}

type ReplyError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Errors  []ResultError `json:"errors,omitempty"`
}

// Submit executes req in the background and returns a channel that receives
// exactly one reply and is then closed. A request without an id is assigned
// one. Cancelling ctx cancels this request only; its reply is then an error
// with code CANCELED.
func (r *Relay) Submit(ctx context.Context, req Request) <-chan Reply {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ch := make(chan Reply, 1)
	inflight.Inc()

	go func() {
		defer func() {
			inflight.Dec()
			close(ch)
		}()
		res, err := r.Execute(ctx, req.Operation)
		ch <- replyFor(req.ID, res, err)
	}()
	return ch
}

func replyFor(id string, res *Result, err error) Reply {
	if err != nil {
		if model.IsCanceled(err) {
			return Reply{Type: ReplyTypeError, ID: id, Error: &ReplyError{Code: "CANCELED", Message: model.ErrCanceled.Error()}}
		}
		return Reply{Type: ReplyTypeError, ID: id, Error: &ReplyError{Code: string(model.KindOf(err)), Message: err.Error()}}
	}
	if len(res.Errors) > 0 {
		code := res.Errors[0].Code
		if code == "" {
			code = string(model.KindInternal)
		}
		return Reply{Type: ReplyTypeError, ID: id, Error: &ReplyError{
			Code:    code,
			Message: res.Errors[0].Message,
			Errors:  res.Errors,
		}}
	}
	return Reply{Type: ReplyTypeResult, ID: id, Data: res.Data}
}
