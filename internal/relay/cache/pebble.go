package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Entry keys live under entryPrefix; entryEnd is the first key past them.
var (
	entryPrefix = []byte("e/")
	entryEnd    = []byte("e0")
)

// Pebble is a durable cache backed by a Pebble database, so earlier reads
// stay available across restarts while the upstream is unreachable.
type Pebble struct {
	db *pebble.DB

	mu     sync.RWMutex
	closed bool
}

var _ Cache = (*Pebble)(nil)

// OpenPebble opens or creates the cache database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble cache path is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &Pebble{db: db}, nil
}

func entryKey(signature string) []byte {
	return append(append([]byte(nil), entryPrefix...), signature...)
}

var errClosed = errors.New("cache is closed")

func (p *Pebble) Get(_ context.Context, signature string) (*Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errClosed
	}

	value, closer, err := p.db.Get(entryKey(signature))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	defer closer.Close()
	return decodeEntry(value)
}

func (p *Pebble) Put(_ context.Context, signature string, e Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	if err := p.db.Set(entryKey(signature), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (p *Pebble) Invalidate(_ context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	if err := p.db.DeleteRange(entryPrefix, entryEnd, pebble.Sync); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close pebble database: %w", err)
	}
	return nil
}
