package config

import (
	"fmt"
	"os"
	"strconv"

	services "github.com/syntrixbase/switchboard/internal/services/config"
)

const (
	BridgeNone  = "none"
	BridgeNATS  = "nats"
	BridgeRedis = "redis"
)

type Config struct {
	// BufferSize bounds the events queued per subscriber stream.
	BufferSize int `yaml:"buffer_size"`
	// Bridge selects the transport that joins brokers across nodes.
	Bridge string      `yaml:"bridge"` // "none", "nats" or "redis"
	NATS   NATSConfig  `yaml:"nats"`
	Redis  RedisConfig `yaml:"redis"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	PoolSize      int    `yaml:"pool_size"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

func DefaultConfig() Config {
	return Config{
		BufferSize: 64,
		Bridge:     BridgeNone,
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "switchboard.events",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			ChannelPrefix: "switchboard:events:",
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.BufferSize == 0 {
		c.BufferSize = defaults.BufferSize
	}
	if c.Bridge == "" {
		c.Bridge = defaults.Bridge
	}
	if c.NATS.URL == "" {
		c.NATS.URL = defaults.NATS.URL
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = defaults.NATS.SubjectPrefix
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = defaults.Redis.PoolSize
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = defaults.Redis.ChannelPrefix
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_BROKER_BRIDGE"); val != "" {
		c.Bridge = val
	}
	if val := os.Getenv("SWITCHBOARD_BROKER_BUFFER_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.BufferSize = n
		}
	}
	if val := os.Getenv("SWITCHBOARD_NATS_URL"); val != "" {
		c.NATS.URL = val
	}
	if val := os.Getenv("SWITCHBOARD_REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("SWITCHBOARD_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
}

// ResolvePaths is a no-op; the broker has no file paths.
func (c *Config) ResolvePaths(_, _ string) {}

func (c *Config) Validate(mode services.DeploymentMode) error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("broker.buffer_size must be positive")
	}
	switch c.Bridge {
	case BridgeNone:
		if mode.IsDistributed() {
			return fmt.Errorf("broker.bridge is required in distributed mode")
		}
	case BridgeNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("broker.nats.url is required")
		}
	case BridgeRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("broker.redis.addr is required")
		}
	default:
		return fmt.Errorf("broker.bridge must be 'none', 'nats' or 'redis', got '%s'", c.Bridge)
	}
	return nil
}
