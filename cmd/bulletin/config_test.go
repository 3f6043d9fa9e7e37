package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// testCommand returns a command carrying the root persistent flags, parsed from args
func testCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.SetContext(context.Background())
	cmd.SetErr(new(bytes.Buffer))
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bulletin.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090
environment = "production"
cors_origins = ["https://www.school.example"]

[rotation]
tick_interval_ms = 8000

[providers.notices]
enabled = false
`)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := loadConfig(testCommand(t, "--config", path), nil)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "production", cfg.Server.Environment)
		assert.Equal(t, 8000, cfg.Rotation.TickIntervalMs)
		assert.False(t, cfg.Providers.Notices.Enabled)
		assert.True(t, cfg.Providers.Birthdays.Enabled, "keys absent from the file keep their defaults")
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("BULLETIN_TICK_INTERVAL_MS", "6000")

		cfg, err := loadConfig(testCommand(t, "-c", path), nil)
		require.NoError(t, err)
		assert.Equal(t, 6000, cfg.Rotation.TickIntervalMs)
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv("BULLETIN_PORT", "7000")

		cfg, err := loadConfig(testCommand(t, "-c", path), map[string]interface{}{
			"port":          7070,
			"host":          "",
			"tick-interval": 0,
		})
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, 8000, cfg.Rotation.TickIntervalMs, "zero flags leave the setting alone")
	})

	t.Run("verbose switches to debug", func(t *testing.T) {
		cfg, err := loadConfig(testCommand(t, "-c", path, "-v"), nil)
		require.NoError(t, err)
		assert.True(t, cfg.Logging.Verbose)
		assert.Equal(t, string(entities.LogLevelDebug), cfg.Logging.Level)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown key",
			content: "[rotation]\ntick_interval = 5000\n",
			errMsg:  "loading configuration",
		},
		{
			name:    "interval below minimum",
			content: "[rotation]\ntick_interval_ms = 10\n",
			errMsg:  "invalid configuration",
		},
		{
			name:    "enabled provider missing from order",
			content: "[rotation]\nprovider_order = [\"banner\"]\n",
			errMsg:  "missing from provider_order",
		},
		{
			name:    "malformed toml",
			content: "[server\nport = 1\n",
			errMsg:  "loading configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(testCommand(t, "-c", writeConfig(t, tt.content)), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfigCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "bulletin.toml")

	cfg, err := loadConfig(testCommand(t, "-c", path), nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, []string{entities.ProviderBanner, entities.ProviderBirthdays, entities.ProviderNotices}, cfg.Rotation.ProviderOrder)
}
