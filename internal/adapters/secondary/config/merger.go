package config

import (
	"os"
	"slices"
	"strconv"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// ConfigMerger applies flag and environment overrides to a loaded configuration
type ConfigMerger struct{}

// NewConfigMerger creates a new configuration merger
func NewConfigMerger() *ConfigMerger {
	return &ConfigMerger{}
}

// ApplyFlags applies CLI flag overrides to a configuration. Zero values mean the flag
// was not given.
func (m *ConfigMerger) ApplyFlags(config *entities.Config, flags map[string]interface{}) *entities.Config {
	result := deepCopy(config)

	if port, ok := flags["port"].(int); ok && port > 0 {
		result.Server.Port = port
	}

	if host, ok := flags["host"].(string); ok && host != "" {
		result.Server.Host = host
	}

	if interval, ok := flags["tick-interval"].(int); ok && interval > 0 {
		result.Rotation.TickIntervalMs = interval
	}

	if level, ok := flags["log-level"].(string); ok && level != "" {
		result.Logging.Level = level
	}

	if verbose, ok := flags["verbose"].(bool); ok && verbose {
		result.Logging.Verbose = true
		result.Logging.Level = string(entities.LogLevelDebug)
	}

	if dsn, ok := flags["dsn"].(string); ok && dsn != "" {
		result.Database.DSN = dsn
	}

	return result
}

// ApplyEnvVars applies environment variable overrides to a configuration. They win over
// the configuration file.
func (m *ConfigMerger) ApplyEnvVars(config *entities.Config) *entities.Config {
	result := deepCopy(config)

	if host := os.Getenv("BULLETIN_HOST"); host != "" {
		result.Server.Host = host
	}

	if portStr := os.Getenv("BULLETIN_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			result.Server.Port = port
		}
	}

	if env := os.Getenv("BULLETIN_ENV"); env != "" {
		result.Server.Environment = env
	}

	if intervalStr := os.Getenv("BULLETIN_TICK_INTERVAL_MS"); intervalStr != "" {
		if interval, err := strconv.Atoi(intervalStr); err == nil && interval > 0 {
			result.Rotation.TickIntervalMs = interval
		}
	}

	if order := getEnvSliceOrDefault("BULLETIN_PROVIDER_ORDER", nil); order != nil {
		result.Rotation.ProviderOrder = order
	}

	if file := os.Getenv("BULLETIN_BANNER_FILE"); file != "" {
		result.Providers.Banner.File = file
	}

	if backend := os.Getenv("BULLETIN_DB_BACKEND"); backend != "" {
		result.Database.Backend = backend
	}

	if dsn := os.Getenv("BULLETIN_DB_DSN"); dsn != "" {
		result.Database.DSN = dsn
	}

	if level := os.Getenv("BULLETIN_LOG_LEVEL"); level != "" {
		result.Logging.Level = level
	}

	if jsonStr := os.Getenv("BULLETIN_LOG_JSON"); jsonStr != "" {
		if jsonFormat, err := strconv.ParseBool(jsonStr); err == nil {
			result.Logging.JSONFormat = jsonFormat
		}
	}

	return result
}

// deepCopy creates a deep copy of a configuration
func deepCopy(src *entities.Config) *entities.Config {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Server.CORSOrigins = slices.Clone(src.Server.CORSOrigins)
	dst.Rotation.ProviderOrder = slices.Clone(src.Rotation.ProviderOrder)
	return &dst
}

var _ ports.ConfigMerger = (*ConfigMerger)(nil)
