package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	services "github.com/syntrixbase/switchboard/internal/services/config"
)

const (
	CacheMemory = "memory"
	CachePebble = "pebble"
)

type Config struct {
	// Upstream is the base URL of the server exposing /v1/operations.
	Upstream string        `yaml:"upstream"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	// Listen is the address the relay daemon serves /v1/relay on.
	Listen string       `yaml:"listen"`
	Cache  CacheConfig  `yaml:"cache"`
	Signal SignalConfig `yaml:"signal"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"` // "memory" or "pebble"
	Path    string `yaml:"path"`
}

// SignalConfig controls the call agent, which negotiates WebRTC sessions for
// the user the relay token belongs to.
type SignalConfig struct {
	Enabled bool `yaml:"enabled"`
	// ICEServers are STUN or TURN URLs used for candidate gathering.
	ICEServers       []string      `yaml:"ice_servers"`
	EstablishTimeout time.Duration `yaml:"establish_timeout"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
}

func DefaultConfig() Config {
	return Config{
		Upstream: "http://localhost:8080",
		Timeout:  30 * time.Second,
		Listen:   "127.0.0.1:8090",
		Cache: CacheConfig{
			Backend: CacheMemory,
			Path:    "relay-cache",
		},
		Signal: SignalConfig{
			ICEServers:       []string{"stun:stun.l.google.com:19302"},
			EstablishTimeout: 30 * time.Second,
			InitialBackoff:   time.Second,
			MaxBackoff:       30 * time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Upstream == "" {
		c.Upstream = defaults.Upstream
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaults.Cache.Backend
	}
	if c.Cache.Path == "" {
		c.Cache.Path = defaults.Cache.Path
	}
	if c.Signal.ICEServers == nil {
		c.Signal.ICEServers = defaults.Signal.ICEServers
	}
	if c.Signal.EstablishTimeout == 0 {
		c.Signal.EstablishTimeout = defaults.Signal.EstablishTimeout
	}
	if c.Signal.InitialBackoff == 0 {
		c.Signal.InitialBackoff = defaults.Signal.InitialBackoff
	}
	if c.Signal.MaxBackoff == 0 {
		c.Signal.MaxBackoff = defaults.Signal.MaxBackoff
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_RELAY_UPSTREAM"); val != "" {
		c.Upstream = val
	}
	if val := os.Getenv("SWITCHBOARD_RELAY_TOKEN"); val != "" {
		c.Token = val
	}
	if val := os.Getenv("SWITCHBOARD_RELAY_CACHE"); val != "" {
		c.Cache.Backend = val
	}
	if val := os.Getenv("SWITCHBOARD_RELAY_SIGNAL"); val != "" {
		c.Signal.Enabled = val == "true" || val == "1"
	}
}

// ResolvePaths resolves a relative cache path against dataDir.
func (c *Config) ResolvePaths(_, dataDir string) {
	if c.Cache.Path != "" && !filepath.IsAbs(c.Cache.Path) {
		c.Cache.Path = filepath.Join(dataDir, c.Cache.Path)
	}
}

func (c *Config) Validate(_ services.DeploymentMode) error {
	u, err := url.Parse(c.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("relay.upstream must be an http(s) URL, got '%s'", c.Upstream)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("relay.timeout must be positive")
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CachePebble:
		if c.Cache.Path == "" {
			return fmt.Errorf("relay.cache.path is required for the pebble cache")
		}
	default:
		return fmt.Errorf("relay.cache.backend must be 'memory' or 'pebble', got '%s'", c.Cache.Backend)
	}
	if c.Signal.Enabled {
		if c.Token == "" {
			return fmt.Errorf("relay.token is required when relay.signal is enabled")
		}
		if c.Signal.InitialBackoff <= 0 || c.Signal.MaxBackoff < c.Signal.InitialBackoff {
			return fmt.Errorf("relay.signal backoff must be positive with max_backoff >= initial_backoff")
		}
	}
	return nil
}
