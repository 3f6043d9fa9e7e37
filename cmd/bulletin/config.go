package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/config"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/logging"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// loadConfig resolves the configuration with precedence flags > environment > file > defaults
func loadConfig(cmd *cobra.Command, flags map[string]interface{}) (*entities.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	loader := config.NewTOMLLoader()
	cfg, err := loader.Load(cmd.Context(), path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if flags == nil {
		flags = make(map[string]interface{})
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		flags["verbose"] = true
	}

	merger := config.NewConfigMerger()
	cfg = merger.ApplyFlags(merger.ApplyEnvVars(cfg), flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setup loads the configuration and builds the process logger. The returned closer
// releases the log file.
func setup(cmd *cobra.Command, flags map[string]interface{}) (*entities.Config, *slog.Logger, logging.Closer, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	slog.SetDefault(logger)

	return cfg, logger, closer, nil
}
