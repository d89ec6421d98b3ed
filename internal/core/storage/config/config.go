package config

import (
	"fmt"
	"os"
	"time"

	services "github.com/syntrixbase/switchboard/internal/services/config"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	Backend string      `yaml:"backend"` // "memory" or "mongo"
	Mongo   MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI            string        `yaml:"uri"`
	DatabaseName   string        `yaml:"database_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	RevocationCollection string `yaml:"revocation_collection"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			URI:                  "mongodb://localhost:27017",
			DatabaseName:         "switchboard",
			ConnectTimeout:       10 * time.Second,
			RevocationCollection: "auth_revocations",
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = defaults.Mongo.DatabaseName
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = defaults.Mongo.ConnectTimeout
	}
	if c.Mongo.RevocationCollection == "" {
		c.Mongo.RevocationCollection = defaults.Mongo.RevocationCollection
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("SWITCHBOARD_MONGO_URI"); val != "" {
		c.Mongo.URI = val
	}
	if val := os.Getenv("SWITCHBOARD_MONGO_DATABASE"); val != "" {
		c.Mongo.DatabaseName = val
	}
}

// ResolvePaths is a no-op; storage has no file paths.
func (c *Config) ResolvePaths(_, _ string) {}

func (c *Config) Validate(mode services.DeploymentMode) error {
	switch c.Backend {
	case BackendMemory:
		if mode.IsDistributed() {
			return fmt.Errorf("storage.backend 'memory' cannot be shared between nodes in distributed mode")
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.DatabaseName == "" {
			return fmt.Errorf("storage.mongo.uri and storage.mongo.database_name are required")
		}
	default:
		return fmt.Errorf("storage.backend must be 'memory' or 'mongo', got '%s'", c.Backend)
	}
	return nil
}
