// Package ratelimit provides per-client request limiting for the HTTP listener.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
	Reset(key string)
}

// Config holds the configuration for rate limiting.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Requests is the burst allowed per key within one Window.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// ClientIP returns the originating address of r, honoring X-Forwarded-For
// and X-Real-IP set by a fronting proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
