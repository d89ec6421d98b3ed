package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	services "github.com/syntrixbase/switchboard/internal/services/config"
)

type GatewayConfig struct {
	Realtime RealtimeConfig `yaml:"realtime"`
}

type RealtimeConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowDevOrigin bool     `yaml:"allow_dev_origin"`

	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int `yaml:"send_buffer"`
	// MaxSubscriptions caps the streams one connection may hold. Zero means no limit.
	MaxSubscriptions int           `yaml:"max_subscriptions"`
	SSEHeartbeat     time.Duration `yaml:"sse_heartbeat"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Realtime: RealtimeConfig{
			AllowedOrigins:   []string{"http://localhost:8080", "http://localhost:3000", "http://localhost:5173"},
			AllowDevOrigin:   true,
			SendBuffer:       256,
			MaxSubscriptions: 64,
			SSEHeartbeat:     15 * time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (g *GatewayConfig) ApplyDefaults() {
	defaults := DefaultGatewayConfig()
	if len(g.Realtime.AllowedOrigins) == 0 {
		g.Realtime.AllowedOrigins = defaults.Realtime.AllowedOrigins
	}
	if g.Realtime.SendBuffer == 0 {
		g.Realtime.SendBuffer = defaults.Realtime.SendBuffer
	}
	if g.Realtime.SSEHeartbeat == 0 {
		g.Realtime.SSEHeartbeat = defaults.Realtime.SSEHeartbeat
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (g *GatewayConfig) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_GATEWAY_ALLOWED_ORIGINS"); val != "" {
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		g.Realtime.AllowedOrigins = origins
	}
}

// ResolvePaths resolves relative paths using the given directories.
// No paths to resolve in gateway config.
func (g *GatewayConfig) ResolvePaths(_, _ string) { _ = g }

// Validate returns an error if the configuration is invalid.
func (g *GatewayConfig) Validate(_ services.DeploymentMode) error {
	if g.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("gateway.realtime.send_buffer must be positive")
	}
	if g.Realtime.MaxSubscriptions < 0 {
		return fmt.Errorf("gateway.realtime.max_subscriptions must not be negative")
	}
	if g.Realtime.SSEHeartbeat <= 0 {
		return fmt.Errorf("gateway.realtime.sse_heartbeat must be positive")
	}
	return nil
}
