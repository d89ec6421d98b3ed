package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg Config) (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(cfg)
	m.now = clock.Now
	t.Cleanup(m.Stop)
	return m, clock
}

func TestMemory_BurstThenReject(t *testing.T) {
	m, _ := newTestLimiter(t, Config{Enabled: true, Requests: 3, Window: time.Minute})

	assert.True(t, m.Allow("10.0.0.1"))
	assert.True(t, m.Allow("10.0.0.1"))
	assert.True(t, m.Allow("10.0.0.1"))
	assert.False(t, m.Allow("10.0.0.1"))

	// Keys are independent.
	assert.True(t, m.Allow("10.0.0.2"))
}

func TestMemory_Refill(t *testing.T) {
	m, clock := newTestLimiter(t, Config{Enabled: true, Requests: 2, Window: time.Minute})

	assert.True(t, m.Allow("k"))
	assert.True(t, m.Allow("k"))
	assert.False(t, m.Allow("k"))

	clock.Advance(30 * time.Second)
	assert.True(t, m.Allow("k"))
	assert.False(t, m.Allow("k"))

	clock.Advance(10 * time.Minute)
	assert.True(t, m.Allow("k"))
	assert.True(t, m.Allow("k"))
	assert.False(t, m.Allow("k"), "refill caps at capacity")
}

func TestMemory_Disabled(t *testing.T) {
	m, _ := newTestLimiter(t, Config{Enabled: false, Requests: 1, Window: time.Minute})
	for i := 0; i < 10; i++ {
		assert.True(t, m.Allow("k"))
	}
}

func TestMemory_Reset(t *testing.T) {
	m, _ := newTestLimiter(t, Config{Enabled: true, Requests: 1, Window: time.Minute})

	assert.True(t, m.Allow("k"))
	assert.False(t, m.Allow("k"))
	m.Reset("k")
	assert.True(t, m.Allow("k"))
}

func TestMemory_ForgetIdle(t *testing.T) {
	m, clock := newTestLimiter(t, Config{Enabled: true, Requests: 1, Window: time.Minute})

	m.Allow("old")
	clock.Advance(3 * time.Minute)
	m.Allow("new")
	m.forgetIdle(2 * time.Minute)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.buckets, "old")
	assert.Contains(t, m.buckets, "new")
}

func TestMemory_StopTwice(t *testing.T) {
	m := NewMemory(Config{Enabled: true, Requests: 1, Window: time.Minute})
	m.Stop()
	assert.NotPanics(t, m.Stop)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.8 "}, "10.0.0.1:80", "203.0.113.8"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:80", "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(r))
		})
	}
}
