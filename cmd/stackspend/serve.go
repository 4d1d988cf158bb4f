package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/auth/providers"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/discovery"
	httpapp "github.com/stackspend/stackspend/internal/http"
	"github.com/stackspend/stackspend/internal/logo"
	"github.com/stackspend/stackspend/internal/metrics"
)

const (
	sessionLifetime = 12 * time.Hour
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the web console, the REST API and the background jobs.",
	Args:        cobra.NoArgs,
	Annotations: structured(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := loadConfig(ctx, config.LoadOptions{RequireDatabaseURL: true})
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.UseMockData {
		created, err := providers.EnsureDemoAdmin(ctx, b.store.Users())
		if err != nil {
			return err
		}
		if created {
			logger.Warn("created demo admin", "email", auth.DemoAdminEmail)
		}
	}

	tokens, err := tokenIssuer(cfg)
	if err != nil {
		return err
	}

	sessions := scs.New()
	sessions.Lifetime = sessionLifetime
	sessions.Cookie.Name = "stackspend_session"
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	if b.pg != nil {
		sessions.Store = pgxstore.New(b.pg.Pool())
	}

	sources, err := discoverySources(ctx, cfg, time.Now())
	if err != nil {
		return err
	}
	syncer := &discovery.Syncer{Store: b.store, Sources: sources, Logger: logger}

	srv, err := httpapp.NewEchoServer(httpapp.Options{
		Config:    cfg,
		Store:     b.store,
		Sessions:  sessions,
		Tokens:    tokens,
		Logos:     logo.NewResolver(logo.Options{ProbeTimeout: cfg.LogoProbeTimeout, CacheTTL: cfg.LogoCacheTTL}),
		Discovery: syncer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	waitJobs := func() {}
	if cfg.JobsEnabled {
		list, err := schedulers(ctx, cfg, b, syncer, logger)
		if err != nil {
			return err
		}
		waitJobs = runSchedulers(ctx, list)
	}
	defer waitJobs()

	var metricsErr <-chan error
	if cfg.MetricsEnabled() {
		metricsErr = metrics.Serve(ctx, cfg.MetricsAddr, logger)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "mock_data", cfg.UseMockData, "jobs", cfg.JobsEnabled)
		errCh <- srv.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx, httpServer)
		return nil
	case err := <-metricsErr:
		stop()
		return err
	case err := <-errCh:
		stop()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
