package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	services "github.com/syntrixbase/switchboard/internal/services/config"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "http://localhost:8080", cfg.Upstream)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.False(t, cfg.Signal.Enabled)
	assert.Equal(t, time.Second, cfg.Signal.InitialBackoff)
	assert.NotEmpty(t, cfg.Signal.ICEServers)
	assert.NoError(t, cfg.Validate(services.ModeStandalone))
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("SWITCHBOARD_RELAY_UPSTREAM", "https://api.example.com")
	t.Setenv("SWITCHBOARD_RELAY_TOKEN", "secret")
	t.Setenv("SWITCHBOARD_RELAY_CACHE", CachePebble)
	t.Setenv("SWITCHBOARD_RELAY_SIGNAL", "true")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "https://api.example.com", cfg.Upstream)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, CachePebble, cfg.Cache.Backend)
	assert.True(t, cfg.Signal.Enabled)
}

func TestConfig_ResolvePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolvePaths("/etc/switchboard", "/var/lib/switchboard")
	assert.Equal(t, filepath.Join("/var/lib/switchboard", "relay-cache"), cfg.Cache.Path)

	cfg.Cache.Path = "/abs/cache"
	cfg.ResolvePaths("/etc/switchboard", "/var/lib/switchboard")
	assert.Equal(t, "/abs/cache", cfg.Cache.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"pebble", func(c *Config) { c.Cache.Backend = CachePebble }, ""},
		{"bad upstream scheme", func(c *Config) { c.Upstream = "ftp://x" }, "relay.upstream"},
		{"upstream without host", func(c *Config) { c.Upstream = "http://" }, "relay.upstream"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "relay.timeout"},
		{"pebble without path", func(c *Config) { c.Cache.Backend = CachePebble; c.Cache.Path = "" }, "relay.cache.path"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, "relay.cache.backend"},
		{"signal with token", func(c *Config) { c.Signal.Enabled = true; c.Token = "t" }, ""},
		{"signal without token", func(c *Config) { c.Signal.Enabled = true }, "relay.token"},
		{"signal backoff inverted", func(c *Config) {
			c.Signal.Enabled = true
			c.Token = "t"
			c.Signal.MaxBackoff = time.Millisecond
		}, "backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(services.ModeStandalone)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
