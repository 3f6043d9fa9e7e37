package ports

import (
	"context"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// ConfigLoader defines the interface for loading configuration files
type ConfigLoader interface {
	// Load reads the configuration at path, creating it with defaults when missing
	Load(ctx context.Context, path string) (*entities.Config, error)

	// CreateDefaults writes a default configuration file at path
	CreateDefaults(ctx context.Context, path string) error

	// DefaultPath returns the configuration path used when none is given
	DefaultPath() string
}

// ConfigMerger applies overrides on top of a loaded configuration
type ConfigMerger interface {
	// ApplyFlags applies CLI flag overrides to a configuration
	ApplyFlags(config *entities.Config, flags map[string]interface{}) *entities.Config

	// ApplyEnvVars applies environment variable overrides to a configuration
	ApplyEnvVars(config *entities.Config) *entities.Config
}
