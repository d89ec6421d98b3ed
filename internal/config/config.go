package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	identity "github.com/syntrixbase/switchboard/internal/core/identity/config"
	broker "github.com/syntrixbase/switchboard/internal/core/pubsub/config"
	storage "github.com/syntrixbase/switchboard/internal/core/storage/config"
	gateway "github.com/syntrixbase/switchboard/internal/gateway/config"
	relay "github.com/syntrixbase/switchboard/internal/relay/config"
	server "github.com/syntrixbase/switchboard/internal/server"
	services "github.com/syntrixbase/switchboard/internal/services/config"
)

// Config holds the application configuration
type Config struct {
	// DataDir is the base for runtime files such as logs and the relay cache.
	DataDir string `yaml:"data_dir"`

	Deployment services.DeploymentConfig `yaml:"deployment"`
	Server     server.Config             `yaml:"server"`
	Logging    LoggingConfig             `yaml:"logging"`

	// Components
	Identity identity.Config       `yaml:"identity"`
	Broker   broker.Config         `yaml:"broker"`
	Gateway  gateway.GatewayConfig `yaml:"gateway"`
	Storage  storage.Config        `yaml:"storage"`
	Relay    relay.Config          `yaml:"relay"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		DataDir:    "data",
		Deployment: services.DefaultDeploymentConfig(),
		Server:     server.DefaultConfig(),
		Logging:    DefaultLoggingConfig(),
		Identity:   identity.DefaultConfig(),
		Broker:     broker.DefaultConfig(),
		Gateway:    gateway.DefaultGatewayConfig(),
		Storage:    storage.DefaultConfig(),
		Relay:      relay.DefaultConfig(),
	}
}

// LoadConfig loads configuration from configDir and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate.
func LoadConfig(configDir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(configDir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.finish(configDir); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// finish runs the lifecycle. Deployment goes first because every other
// section validates against its mode.
func (c *Config) finish(configDir string) error {
	if val := os.Getenv("SWITCHBOARD_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}

	c.Deployment.ApplyDefaults()
	c.Deployment.ApplyEnvOverrides()
	if err := c.Deployment.Validate(); err != nil {
		return err
	}

	return ApplyServiceConfigs(configDir, c.DataDir, c.Deployment.Mode,
		&c.Server,
		&c.Logging,
		&c.Identity,
		&c.Broker,
		&c.Gateway,
		&c.Storage,
		&c.Relay,
	)
}

// loadFile merges a YAML file into cfg. A missing file is not an error.
func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return nil
}
