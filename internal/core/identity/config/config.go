package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	services "github.com/syntrixbase/switchboard/internal/services/config"
	"github.com/syntrixbase/switchboard/pkg/model"
)

type Config struct {
	AuthN AuthNConfig `yaml:"authn"`
}

type AuthNConfig struct {
	// PrivateKeyFile holds the RSA key used to sign dev tokens. A missing file
	// is generated on first start.
	PrivateKeyFile string `yaml:"private_key_file"`

	// PublicKeyFile, when set, validates tokens without a private key.
	PublicKeyFile string `yaml:"public_key_file"`

	Issuer         string        `yaml:"issuer"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	Leeway         time.Duration `yaml:"leeway"`

	// RevocationCheck rejects tokens whose id was revoked in the data layer.
	RevocationCheck bool `yaml:"revocation_check"`

	// StaticTokens maps opaque tokens to user ids for development setups.
	StaticTokens map[string]StaticUser `yaml:"static_tokens"`
}

type StaticUser struct {
	UserID   string `yaml:"user_id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
}

func DefaultConfig() Config {
	return Config{
		AuthN: AuthNConfig{
			PrivateKeyFile: "keys/auth_private.pem",
			Issuer:         "switchboard",
			AccessTokenTTL: 15 * time.Minute,
			Leeway:         30 * time.Second,
		},
	}
}

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.AuthN.PrivateKeyFile == "" && c.AuthN.PublicKeyFile == "" {
		c.AuthN.PrivateKeyFile = defaults.AuthN.PrivateKeyFile
	}
	if c.AuthN.Issuer == "" {
		c.AuthN.Issuer = defaults.AuthN.Issuer
	}
	if c.AuthN.AccessTokenTTL == 0 {
		c.AuthN.AccessTokenTTL = defaults.AuthN.AccessTokenTTL
	}
	if c.AuthN.Leeway == 0 {
		c.AuthN.Leeway = defaults.AuthN.Leeway
	}
}

// ApplyEnvOverrides applies environment variable overrides
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_AUTH_PUBLIC_KEY_FILE"); val != "" {
		c.AuthN.PublicKeyFile = val
	}
	if val := os.Getenv("SWITCHBOARD_AUTH_PRIVATE_KEY_FILE"); val != "" {
		c.AuthN.PrivateKeyFile = val
	}
	if val := os.Getenv("SWITCHBOARD_AUTH_ISSUER"); val != "" {
		c.AuthN.Issuer = val
	}
}

// ResolvePaths resolves key files relative to the config directory
func (c *Config) ResolvePaths(configDir, _ string) {
	if c.AuthN.PrivateKeyFile != "" && !filepath.IsAbs(c.AuthN.PrivateKeyFile) {
		c.AuthN.PrivateKeyFile = filepath.Join(configDir, c.AuthN.PrivateKeyFile)
	}
	if c.AuthN.PublicKeyFile != "" && !filepath.IsAbs(c.AuthN.PublicKeyFile) {
		c.AuthN.PublicKeyFile = filepath.Join(configDir, c.AuthN.PublicKeyFile)
	}
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate(_ services.DeploymentMode) error {
	if c.AuthN.PrivateKeyFile == "" && c.AuthN.PublicKeyFile == "" {
		return fmt.Errorf("identity.authn requires private_key_file or public_key_file")
	}
	if c.AuthN.AccessTokenTTL < 0 {
		return fmt.Errorf("identity.authn.access_token_ttl must not be negative")
	}
	for token, u := range c.AuthN.StaticTokens {
		if token == "" || u.UserID == "" {
			return fmt.Errorf("identity.authn.static_tokens entries need a token and user_id")
		}
		if !model.CheckID(u.UserID) {
			return fmt.Errorf("identity.authn.static_tokens user_id %q is not a valid id", u.UserID)
		}
	}
	return nil
}
