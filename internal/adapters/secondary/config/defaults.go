package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// GetDefaultConfig returns the default configuration with environment overrides
func GetDefaultConfig() *entities.Config {
	config := &entities.Config{
		Server: entities.ServerConfig{
			Host:            getEnvOrDefault("BULLETIN_HOST", "127.0.0.1"),
			Port:            getEnvIntOrDefault("BULLETIN_PORT", 8080),
			ReadTimeout:     getEnvIntOrDefault("BULLETIN_READ_TIMEOUT", 30),
			WriteTimeout:    getEnvIntOrDefault("BULLETIN_WRITE_TIMEOUT", 30),
			ShutdownTimeout: getEnvIntOrDefault("BULLETIN_SHUTDOWN_TIMEOUT", 5),
			Environment:     getEnvOrDefault("BULLETIN_ENV", "development"),
			CORSOrigins: getEnvSliceOrDefault("BULLETIN_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:8080",
				"http://127.0.0.1:8080",
			}),
		},
		Rotation: entities.RotationConfig{
			TickIntervalMs: getEnvIntOrDefault("BULLETIN_TICK_INTERVAL_MS", 5000),
			ProviderOrder: getEnvSliceOrDefault("BULLETIN_PROVIDER_ORDER", []string{
				entities.ProviderBanner,
				entities.ProviderBirthdays,
				entities.ProviderNotices,
			}),
		},
		Providers: entities.ProvidersConfig{
			Banner: entities.BannerProviderConfig{
				Enabled:    true,
				File:       getEnvOrDefault("BULLETIN_BANNER_FILE", "banner.yaml"),
				Watch:      true,
				IntervalMs: 500,
				DebounceMs: 1000,
			},
			Birthdays: entities.PollingProviderConfig{
				Enabled:          true,
				RefreshSeconds:   300,
				FetchTimeoutSecs: 10,
				Limit:            10,
			},
			Notices: entities.PollingProviderConfig{
				Enabled:          true,
				RefreshSeconds:   60,
				FetchTimeoutSecs: 10,
				Limit:            5,
			},
		},
		Database: entities.DatabaseConfig{
			Backend:         getEnvOrDefault("BULLETIN_DB_BACKEND", entities.DatabaseSQLite),
			DSN:             getEnvOrDefault("BULLETIN_DB_DSN", "bulletin.db"),
			MaxOpenConns:    getEnvIntOrDefault("BULLETIN_DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvIntOrDefault("BULLETIN_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30,
		},
		Logging: entities.LoggingConfig{
			Level:      getEnvOrDefault("BULLETIN_LOG_LEVEL", "info"),
			Verbose:    getEnvBoolOrDefault("BULLETIN_LOG_VERBOSE", false),
			JSONFormat: getEnvBoolOrDefault("BULLETIN_LOG_JSON", false),
			File:       getEnvOrDefault("BULLETIN_LOG_FILE", ""),
		},
	}

	applyEnvironmentOverrides(config)

	return config
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvSliceOrDefault returns a comma separated environment variable as slice or default
func getEnvSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// applyEnvironmentOverrides toggles providers from the environment
func applyEnvironmentOverrides(config *entities.Config) {
	toggles := map[string]*bool{
		"BULLETIN_BANNER_ENABLED":    &config.Providers.Banner.Enabled,
		"BULLETIN_BANNER_WATCH":      &config.Providers.Banner.Watch,
		"BULLETIN_BIRTHDAYS_ENABLED": &config.Providers.Birthdays.Enabled,
		"BULLETIN_NOTICES_ENABLED":   &config.Providers.Notices.Enabled,
	}
	for key, target := range toggles {
		*target = getEnvBoolOrDefault(key, *target)
	}

	if tz := os.Getenv("BULLETIN_TIMEZONE"); tz != "" {
		config.Providers.Birthdays.Timezone = tz
		config.Providers.Notices.Timezone = tz
	}
}
