package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/connectors/awscost"
	"github.com/stackspend/stackspend/internal/connectors/awsidc"
	"github.com/stackspend/stackspend/internal/connectors/entra"
	"github.com/stackspend/stackspend/internal/connectors/googleworkspace"
	"github.com/stackspend/stackspend/internal/connectors/okta"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/fixtures"
	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/secrets"
	"github.com/stackspend/stackspend/internal/store"
	"github.com/stackspend/stackspend/internal/store/memstore"
	"github.com/stackspend/stackspend/internal/store/pgstore"
)

const jobBackoffBase = time.Minute

// loadConfig reads the environment and resolves vault: and env: secret references.
func loadConfig(ctx context.Context, opts config.LoadOptions) (config.Config, error) {
	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		return cfg, err
	}
	resolver, err := secrets.NewResolver(cfg.Vault)
	if err != nil {
		return cfg, err
	}
	if err := resolver.ResolveConfig(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// backend is the opened store. pg is nil in mock mode.
type backend struct {
	store store.Store
	pg    *pgstore.Store
}

func (b backend) Close() {
	if b.store != nil {
		b.store.Close()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	if cfg.UseMockData {
		st, report, err := memstore.NewSeeded(ctx)
		if err != nil {
			return backend{}, fmt.Errorf("seed in-memory store: %w", err)
		}
		logger.Info("using in-memory store with demo data", "records", report.Total())
		return backend{store: st}, nil
	}
	pg, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return backend{}, err
	}
	return backend{store: pg, pg: pg}, nil
}

// tokenIssuer builds the API token issuer. Mock mode without a configured secret gets a
// random one, so tokens do not survive a restart.
func tokenIssuer(cfg config.Config) (*auth.TokenIssuer, error) {
	secret := cfg.APITokenSecret
	if secret == "" {
		if !cfg.UseMockData {
			return nil, errors.New("API_TOKEN_SECRET is required")
		}
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(b)
	}
	return auth.NewTokenIssuer(secret, cfg.APITokenTTL)
}

// discoverySources returns the configured sources. Mock mode replays the demo observations.
func discoverySources(ctx context.Context, cfg config.Config, now time.Time) ([]discovery.Source, error) {
	if cfg.UseMockData {
		ds, err := fixtures.Demo(now)
		if err != nil {
			return nil, err
		}
		return staticSources(ds.Discoveries), nil
	}

	var sources []discovery.Source
	if cfg.Okta.Enabled() {
		src, err := okta.NewSource(cfg.Okta.Domain, cfg.Okta.Token)
		if err != nil {
			return nil, fmt.Errorf("okta source: %w", err)
		}
		sources = append(sources, src)
	}
	if cfg.GoogleWorkspace.Enabled() {
		client, err := googleworkspace.New(ctx, cfg.GoogleWorkspace, googleworkspace.Options{})
		if err != nil {
			return nil, fmt.Errorf("google workspace source: %w", err)
		}
		sources = append(sources, googleworkspace.NewSource(client, cfg.GoogleWorkspace.CustomerID))
	}
	if cfg.Entra.Enabled() {
		client, err := entra.NewClient(ctx, cfg.Entra, entra.ClientOptions{})
		if err != nil {
			return nil, fmt.Errorf("entra source: %w", err)
		}
		sources = append(sources, entra.NewSource(client))
	}
	if cfg.AWSIdentity.Enabled() {
		client, err := awsidc.New(ctx, awsidc.Options{
			Region:          cfg.AWSIdentity.Region,
			InstanceArn:     cfg.AWSIdentity.InstanceARN,
			IdentityStoreID: cfg.AWSIdentity.IdentityStoreID,
		})
		if err != nil {
			return nil, fmt.Errorf("aws identity center source: %w", err)
		}
		sources = append(sources, awsidc.NewSource(client))
	}
	return sources, nil
}

func staticSources(observations []discovery.Observation) []discovery.Source {
	bySource := map[string][]discovery.Observation{}
	for _, obs := range observations {
		bySource[obs.Source] = append(bySource[obs.Source], obs)
	}
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)
	sources := make([]discovery.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, discovery.StaticSource{SourceName: name, Observations: bySource[name]})
	}
	return sources
}

// schedulers builds one scheduler per enabled job. Every job is instrumented, and guarded
// by an advisory lock when running against Postgres so serve and worker never overlap.
func schedulers(ctx context.Context, cfg config.Config, b backend, syncer *discovery.Syncer, logger *slog.Logger) ([]*jobs.Scheduler, error) {
	guard := func(name string, r jobs.Runner) jobs.Runner {
		if b.pg != nil {
			r = b.pg.LockedRunner(name, r)
		} else {
			r = jobs.NewTryLockRunner(r)
		}
		return jobs.Instrument(name, r, logger)
	}
	schedule := func(name string, r jobs.Runner, interval time.Duration) *jobs.Scheduler {
		return &jobs.Scheduler{
			Name:        name,
			Runner:      guard(name, r),
			Interval:    interval,
			BackoffBase: jobBackoffBase,
			BackoffMax:  cfg.JobFailureBackoffMax,
			Logger:      logger,
		}
	}

	out := []*jobs.Scheduler{
		schedule("renewal_reminders", &jobs.RenewalReminders{Store: b.store, Logger: logger}, cfg.RenewalScanInterval),
	}
	if syncer != nil && len(syncer.Sources) > 0 {
		out = append(out, schedule("discovery_sync", syncer, cfg.DiscoverySyncInterval))
	}
	if cfg.AWSCost.Enabled() {
		awsCfg, err := awsidc.LoadConfig(ctx, cfg.AWSCost.Region, "", "", "")
		if err != nil {
			return nil, fmt.Errorf("aws cost import: %w", err)
		}
		importer := awscost.New(awsCfg, b.store, cfg.AWSCost.Application, logger)
		out = append(out, schedule("aws_cost_import", importer, cfg.CostImportInterval))
	}
	return out, nil
}

// runSchedulers starts every scheduler and returns a function that waits for them to stop.
func runSchedulers(ctx context.Context, list []*jobs.Scheduler) (wait func()) {
	var wg sync.WaitGroup
	for _, s := range list {
		wg.Go(func() { s.Run(ctx) })
	}
	return wg.Wait
}
