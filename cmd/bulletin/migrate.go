package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the record tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	db, err := store.Connect(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(db) }()

	if err := store.NewGormStore(db, logger).Migrate(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Record tables ready (%s)\n", cfg.Database.Backend)
	return nil
}
