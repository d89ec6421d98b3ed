package cache

import (
	"context"
	"sync"
)

// Memory is a process-local cache. Its contents do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, signature string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[signature]
	if !ok {
		return nil, ErrMiss
	}
	e.Data = append([]byte(nil), e.Data...)
	return &e, nil
}

func (m *Memory) Put(_ context.Context, signature string, e Entry) error {
	e.Data = append([]byte(nil), e.Data...)
	m.mu.Lock()
	m.entries[signature] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
