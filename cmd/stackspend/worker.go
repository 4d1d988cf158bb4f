package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/metrics"
)

var workerOnce bool

var workerCmd = &cobra.Command{
	Use:         "worker",
	Short:       "Run the background jobs: renewal reminders, discovery sync and cost import.",
	Args:        cobra.NoArgs,
	Annotations: structured(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run every job a single time and exit, for cron-style deployments")
}

func runWorker() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := loadConfig(ctx, config.LoadOptions{RequireDatabaseURL: true})
	if err != nil {
		return err
	}
	if cfg.UseMockData {
		return errors.New("the worker needs Postgres; mock mode runs jobs inside serve")
	}
	if !workerOnce && cfg.RenewalScanInterval <= 0 {
		return errors.New("RENEWAL_SCAN_INTERVAL must be > 0 to run the worker")
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	sources, err := discoverySources(ctx, cfg, time.Now())
	if err != nil {
		return err
	}
	syncer := &discovery.Syncer{Store: b.store, Sources: sources, Logger: logger}

	list, err := schedulers(ctx, cfg, b, syncer, logger)
	if err != nil {
		return err
	}

	if workerOnce {
		return runJobsOnce(ctx, list, logger)
	}

	if cfg.MetricsEnabled() {
		metricsErr := metrics.Serve(ctx, cfg.MetricsAddr, logger)
		go func() {
			select {
			case err := <-metricsErr:
				logger.Error("metrics listener stopped", "err", err)
				stop()
			case <-ctx.Done():
			}
		}()
	}

	logger.Info("worker started", "jobs", len(list), "discovery_sources", len(sources))
	runSchedulers(ctx, list)()
	return nil
}

// runJobsOnce runs each scheduled job a single time. Idle jobs and jobs whose lock another
// worker holds are not failures.
func runJobsOnce(ctx context.Context, list []*jobs.Scheduler, logger *slog.Logger) error {
	seq := make(jobs.Sequence, 0, len(list))
	for _, s := range list {
		seq = append(seq, s.Runner)
	}
	err := seq.RunOnce(ctx)
	switch {
	case err == nil:
		logger.Info("jobs finished", "jobs", len(seq))
	case err == jobs.ErrAlreadyRunning:
		logger.Info("jobs skipped, another worker holds their locks")
	case err == jobs.ErrNothingToDo:
		logger.Info("jobs had nothing to do")
	default:
		return err
	}
	return nil
}
