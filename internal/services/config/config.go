package config

import (
	"fmt"
	"os"
)

// DeploymentMode represents the deployment mode of the service.
type DeploymentMode string

const (
	// ModeStandalone runs a single node with the in-memory broker and data layer.
	ModeStandalone DeploymentMode = "standalone"
	// ModeDistributed runs several nodes sharing a broker bridge and a MongoDB data layer.
	ModeDistributed DeploymentMode = "distributed"
)

// IsStandalone returns true if this is standalone mode.
// Empty string defaults to standalone.
func (m DeploymentMode) IsStandalone() bool {
	return m == "" || m == ModeStandalone
}

// IsDistributed returns true if this is distributed mode.
func (m DeploymentMode) IsDistributed() bool {
	return m == ModeDistributed
}

// DeploymentConfig holds deployment mode settings
type DeploymentConfig struct {
	Mode   DeploymentMode `yaml:"mode"` // "standalone" (default) or "distributed"
	NodeID string         `yaml:"node_id"`
}

func DefaultDeploymentConfig() DeploymentConfig {
	return DeploymentConfig{
		Mode: ModeStandalone,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *DeploymentConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			c.NodeID = host
		}
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *DeploymentConfig) ApplyEnvOverrides() {
	if val := os.Getenv("SWITCHBOARD_DEPLOYMENT_MODE"); val != "" {
		c.Mode = DeploymentMode(val)
	}
	if val := os.Getenv("SWITCHBOARD_NODE_ID"); val != "" {
		c.NodeID = val
	}
}

// Validate returns an error if the configuration is invalid.
func (c *DeploymentConfig) Validate() error {
	if c.Mode != "" && c.Mode != ModeStandalone && c.Mode != ModeDistributed {
		return fmt.Errorf("deployment.mode must be 'standalone' or 'distributed', got '%s'", c.Mode)
	}
	return nil
}
