package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/metrics"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrNoSources is returned by RunOnce when no discovery source is configured.
var ErrNoSources = fmt.Errorf("no discovery sources configured: %w", jobs.ErrNothingToDo)

// Syncer pulls observations from every source and folds them into the store.
type Syncer struct {
	Store   store.Store
	Sources []Source
	Logger  *slog.Logger
	Now     func() time.Time
}

// SourceResult summarizes one source's pass.
type SourceResult struct {
	Source       string
	Observations int
	Linked       int
	Err          error
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RunOnce runs a single pass over every source.
func (s *Syncer) RunOnce(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}

// Run collects all sources concurrently, then applies their observations in source order.
// A failing source does not stop the others; their errors are joined.
func (s *Syncer) Run(ctx context.Context) ([]SourceResult, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("discovery syncer is not configured")
	}
	if len(s.Sources) == 0 {
		return nil, ErrNoSources
	}

	collected := make([][]Observation, len(s.Sources))
	results := make([]SourceResult, len(s.Sources))
	var g errgroup.Group
	g.SetLimit(4)
	for i, src := range s.Sources {
		results[i].Source = src.Name()
		g.Go(func() error {
			obs, err := src.Collect(ctx)
			if err != nil {
				results[i].Err = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			collected[i] = obs
			return nil
		})
	}
	_ = g.Wait()

	index, err := s.applicationIndex(ctx)
	if err != nil {
		return results, err
	}

	var errs []error
	for i := range s.Sources {
		res := &results[i]
		if res.Err != nil {
			s.logger().Warn("discovery source failed", "source", res.Source, "err", res.Err)
			errs = append(errs, res.Err)
			continue
		}
		for _, obs := range collected[i] {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			_, linked, err := s.apply(ctx, obs, index)
			if err != nil {
				res.Err = fmt.Errorf("%s: %w", res.Source, err)
				break
			}
			res.Observations++
			if linked {
				res.Linked++
			}
		}
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		metrics.DiscoveredApps.WithLabelValues(res.Source).Set(float64(res.Observations))
		if res.Linked > 0 {
			metrics.DiscoveryAutoLinksTotal.WithLabelValues(res.Source).Add(float64(res.Linked))
		}
		s.logger().Info("discovery source synced",
			"source", res.Source,
			"observations", res.Observations,
			"linked", res.Linked,
		)
	}
	return results, errors.Join(errs...)
}

// Apply stores one observation outside a scheduled pass, as the manual API does.
func (s *Syncer) Apply(ctx context.Context, obs Observation) (spend.Discovery, error) {
	index, err := s.applicationIndex(ctx)
	if err != nil {
		return spend.Discovery{}, err
	}
	d, _, err := s.apply(ctx, obs, index)
	if err != nil {
		return spend.Discovery{}, err
	}
	return s.Store.Discoveries().Get(ctx, d.ID)
}

type appIndex struct {
	byDomain map[string]int64
	byName   map[string]int64
}

func (idx appIndex) match(d spend.Discovery) (int64, bool) {
	if domain := NormalizeDomain(d.Domain); domain != "" {
		if id, ok := idx.byDomain[domain]; ok {
			return id, true
		}
	}
	id, ok := idx.byName[strings.ToLower(strings.TrimSpace(d.DisplayName))]
	return id, ok
}

func (s *Syncer) applicationIndex(ctx context.Context) (appIndex, error) {
	apps, err := s.Store.Applications().All(ctx)
	if err != nil {
		return appIndex{}, fmt.Errorf("load applications: %w", err)
	}
	idx := appIndex{byDomain: map[string]int64{}, byName: map[string]int64{}}
	for _, app := range apps {
		if domain := NormalizeDomain(app.Domain); domain != "" {
			if _, taken := idx.byDomain[domain]; !taken {
				idx.byDomain[domain] = app.ID
			}
		}
		name := strings.ToLower(strings.TrimSpace(app.Name))
		if _, taken := idx.byName[name]; !taken && name != "" {
			idx.byName[name] = app.ID
		}
	}
	return idx, nil
}

// apply upserts obs, links it to a matching application when it isn't linked yet, and
// merges the observed users into the linked application's user list.
func (s *Syncer) apply(ctx context.Context, obs Observation, index appIndex) (spend.Discovery, bool, error) {
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = s.now()
	}
	d, err := s.Store.Discoveries().Upsert(ctx, obs)
	if err != nil {
		return d, false, fmt.Errorf("upsert %q: %w", obs.CanonicalKey, err)
	}
	if d.State == spend.DiscoveryStateIgnored {
		return d, false, nil
	}

	linked := false
	if !d.Managed() {
		appID, ok := index.match(d)
		if !ok {
			return d, false, nil
		}
		if err := s.Store.Discoveries().Link(ctx, d.ID, appID); err != nil {
			return d, false, fmt.Errorf("link %q: %w", d.DisplayName, err)
		}
		d.ApplicationID = &appID
		linked = true
	}

	if len(obs.Users) == 0 {
		return d, linked, nil
	}
	appID := *d.ApplicationID
	current, err := s.Store.Applications().ListUsers(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d, linked, nil
		}
		return d, linked, fmt.Errorf("list users for application %d: %w", appID, err)
	}
	if err := s.Store.Applications().ReplaceUsers(ctx, appID, spend.MergeUsers(current, obs.Users)); err != nil {
		return d, linked, fmt.Errorf("replace users for application %d: %w", appID, err)
	}
	return d, linked, nil
}
