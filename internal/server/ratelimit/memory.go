package ratelimit

import (
	"sync"
	"time"
)

// Memory is a token-bucket limiter keyed in process memory. Each key holds
// up to Requests tokens, refilled evenly over Window.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewMemory returns a limiter and starts the sweeper that forgets idle keys.
// Call Stop to release it.
func NewMemory(cfg Config) *Memory {
	m := &Memory{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cfg.Window > 0 {
		go m.sweep(2 * cfg.Window)
	}
	return m
}

func (m *Memory) Allow(key string) bool {
	if !m.cfg.Enabled {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	capacity := float64(m.cfg.Requests)

	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: capacity - 1, seen: now}
		return capacity >= 1
	}

	rate := capacity / m.cfg.Window.Seconds()
	b.tokens = min(capacity, b.tokens+now.Sub(b.seen).Seconds()*rate)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (m *Memory) Reset(key string) {
	m.mu.Lock()
	delete(m.buckets, key)
	m.mu.Unlock()
}

// Stop ends the sweeper. It is safe to call more than once.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) sweep(idle time.Duration) {
	t := time.NewTicker(idle)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.forgetIdle(idle)
		}
	}
}

func (m *Memory) forgetIdle(idle time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, b := range m.buckets {
		if now.Sub(b.seen) > idle {
			delete(m.buckets, key)
		}
	}
}

var _ Limiter = (*Memory)(nil)
