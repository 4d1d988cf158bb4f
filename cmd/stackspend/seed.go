package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/fixtures"
	"github.com/stackspend/stackspend/internal/store/pgstore"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:         "seed",
	Short:       "Load the demo dataset into Postgres. Records that already exist are skipped.",
	Args:        cobra.NoArgs,
	Annotations: structured(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.UseMockData {
			return errors.New("seed writes to Postgres; unset USE_MOCK_DATA")
		}

		ds, err := loadDataset(seedFile, time.Now())
		if err != nil {
			return err
		}

		st, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := fixtures.Apply(ctx, st, ds)
		if err != nil {
			return err
		}
		slog.Info("seed applied",
			"created", report.Total(),
			"applications", report.Applications,
			"contracts", report.Contracts,
			"discoveries", report.Discoveries,
		)
		return nil
	},
}

func loadDataset(path string, now time.Time) (fixtures.Dataset, error) {
	if path == "" {
		return fixtures.Demo(now)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fixtures.Dataset{}, err
	}
	return fixtures.Parse(raw, now)
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML dataset to load instead of the embedded demo data")
}
