package config

import (
	services "github.com/syntrixbase/switchboard/internal/services/config"
)

// ServiceConfig is the lifecycle every configuration section implements.
type ServiceConfig interface {
	// ApplyDefaults fills zero values with defaults.
	ApplyDefaults()

	// ApplyEnvOverrides applies SWITCHBOARD_* environment variables.
	ApplyEnvOverrides()

	// ResolvePaths makes relative paths absolute. configDir anchors files
	// shipped with the configuration (keys); dataDir anchors runtime
	// state (logs, caches).
	ResolvePaths(configDir, dataDir string)

	// Validate checks the section, including mode-specific requirements.
	Validate(mode services.DeploymentMode) error
}

// ApplyServiceConfigs runs the lifecycle on each config in order and stops
// at the first validation error.
func ApplyServiceConfigs(configDir, dataDir string, mode services.DeploymentMode, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		cfg.ResolvePaths(configDir, dataDir)
		if err := cfg.Validate(mode); err != nil {
			return err
		}
	}
	return nil
}
