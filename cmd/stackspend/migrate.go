package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/db/migrations"
	"github.com/stackspend/stackspend/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Run database migrations",
	Args:        cobra.NoArgs,
	Annotations: structured(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.UseMockData {
			slog.Info("mock mode uses the in-memory store; nothing to migrate")
			return nil
		}

		applied, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if !applied {
			slog.Info("no changes to apply")
			return nil
		}
		version, _, err := migrations.Version(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("migrations applied successfully", "version", version)
		return nil
	},
}
