package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/switchboard/internal/server/ratelimit"
	services "github.com/syntrixbase/switchboard/internal/services/config"
)

// Config holds the configuration for the HTTP and gRPC listeners.
type Config struct {
	Host string `yaml:"host"`

	// HTTP Configuration
	HTTPPort         int           `yaml:"http_port"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`
	MetricsPath      string        `yaml:"metrics_path"`

	CORS      CORSConfig       `yaml:"cors"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// gRPC Configuration. The listener serves the standard health service.
	DisableGRPC       bool `yaml:"disable_grpc"`
	GRPCPort          int  `yaml:"grpc_port"`
	GRPCMaxConcurrent uint `yaml:"grpc_max_concurrent"`
	EnableReflection  bool `yaml:"enable_reflection"`

	// Lifecycle Configuration
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// DefaultConfig returns safe defaults for development.
func DefaultConfig() Config {
	return Config{
		Host:             "localhost",
		HTTPPort:         8080,
		HTTPReadTimeout:  10 * time.Second,
		HTTPWriteTimeout: 10 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		MetricsPath:      "/metrics",
		CORS: CORSConfig{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         600,
		},
		RateLimit: ratelimit.Config{
			Requests: 600,
			Window:   time.Minute,
		},
		GRPCPort:          9000,
		GRPCMaxConcurrent: 100,
		ShutdownTimeout:   10 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = d.HTTPPort
	}
	if c.HTTPReadTimeout == 0 {
		c.HTTPReadTimeout = d.HTTPReadTimeout
	}
	if c.HTTPWriteTimeout == 0 {
		c.HTTPWriteTimeout = d.HTTPWriteTimeout
	}
	if c.HTTPIdleTimeout == 0 {
		c.HTTPIdleTimeout = d.HTTPIdleTimeout
	}
	if c.MetricsPath == "" {
		c.MetricsPath = d.MetricsPath
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = d.CORS.AllowedMethods
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = d.CORS.AllowedHeaders
	}
	if c.CORS.MaxAge == 0 {
		c.CORS.MaxAge = d.CORS.MaxAge
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = d.RateLimit.Requests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = d.RateLimit.Window
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = d.GRPCPort
	}
	if c.GRPCMaxConcurrent == 0 {
		c.GRPCMaxConcurrent = d.GRPCMaxConcurrent
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_HOST"); val != "" {
		c.Host = val
	}
	if val := os.Getenv("SWITCHBOARD_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.HTTPPort = port
		}
	}
	if val := os.Getenv("SWITCHBOARD_GRPC_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.GRPCPort = port
		}
	}
}

// ResolvePaths is a no-op; the server has no file paths.
func (c *Config) ResolvePaths(_, _ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate(_ services.DeploymentMode) error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port out of range: %d", c.GRPCPort)
	}
	if !c.DisableGRPC && c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		return fmt.Errorf("server.http_port and server.grpc_port must differ")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("server.rate_limit needs positive requests and window")
	}
	return nil
}
