package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/store/memstore"
	"go.uber.org/goleak"
)

func TestStaticSourcesGroupBySourceName(t *testing.T) {
	t.Parallel()

	obs := []discovery.Observation{
		{CanonicalKey: "domain:slack.com", Source: discovery.SourceOkta},
		{CanonicalKey: "domain:notion.so", Source: discovery.SourceGoogleWorkspace},
		{CanonicalKey: "domain:figma.com", Source: discovery.SourceOkta},
	}
	sources := staticSources(obs)

	var names []string
	keys := map[string][]string{}
	for _, src := range sources {
		names = append(names, src.Name())
		got, err := src.Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect(%s) error = %v", src.Name(), err)
		}
		for _, o := range got {
			keys[src.Name()] = append(keys[src.Name()], o.CanonicalKey)
		}
	}
	if diff := cmp.Diff([]string{discovery.SourceGoogleWorkspace, discovery.SourceOkta}, names); diff != "" {
		t.Fatalf("source names (-want +got):\n%s", diff)
	}
	want := map[string][]string{
		discovery.SourceGoogleWorkspace: {"domain:notion.so"},
		discovery.SourceOkta:            {"domain:slack.com", "domain:figma.com"},
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("observations (-want +got):\n%s", diff)
	}
}

func TestTokenIssuer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{name: "mock generates a secret", cfg: config.Config{UseMockData: true, APITokenTTL: time.Hour}},
		{name: "configured secret", cfg: config.Config{APITokenSecret: "0123456789abcdef0123", APITokenTTL: time.Hour}},
		{name: "missing outside mock", cfg: config.Config{APITokenTTL: time.Hour}, wantErr: "API_TOKEN_SECRET"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			issuer, err := tokenIssuer(tc.cfg)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("tokenIssuer() error = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil || issuer == nil {
				t.Fatalf("tokenIssuer() = %v, %v", issuer, err)
			}
		})
	}
}

func TestSchedulersForInMemoryBackend(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	b := backend{store: st}
	cfg := config.Config{
		RenewalScanInterval:   time.Hour,
		DiscoverySyncInterval: 6 * time.Hour,
	}

	list, err := schedulers(context.Background(), cfg, b, &discovery.Syncer{Store: st}, nil)
	if err != nil {
		t.Fatalf("schedulers() error = %v", err)
	}
	if got := schedulerNames(list); !cmp.Equal(got, []string{"renewal_reminders"}) {
		t.Fatalf("without sources got %v", got)
	}

	syncer := &discovery.Syncer{Store: st, Sources: staticSources(nil)}
	syncer.Sources = append(syncer.Sources, discovery.StaticSource{SourceName: discovery.SourceManual})
	list, err = schedulers(context.Background(), cfg, b, syncer, nil)
	if err != nil {
		t.Fatalf("schedulers() error = %v", err)
	}
	if diff := cmp.Diff([]string{"renewal_reminders", "discovery_sync"}, schedulerNames(list)); diff != "" {
		t.Fatalf("scheduler names (-want +got):\n%s", diff)
	}
}

func schedulerNames(list []*jobs.Scheduler) []string {
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	return names
}

func TestRunSchedulersStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	var runs atomic.Int32
	started := make(chan struct{}, 2)
	job := jobs.RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		return errors.New("upstream unavailable")
	})
	list := []*jobs.Scheduler{
		{Name: "a", Runner: job, Interval: time.Hour, BackoffBase: time.Minute},
		{Name: "b", Runner: job, Interval: time.Hour},
	}

	ctx, cancel := context.WithCancel(context.Background())
	wait := runSchedulers(ctx, list)
	<-started
	<-started
	cancel()
	wait()

	if got := runs.Load(); got != 2 {
		t.Fatalf("runs = %d, want 2", got)
	}
}

func TestRunJobsOnce(t *testing.T) {
	t.Parallel()

	fail := errors.New("cost explorer: access denied")
	tests := []struct {
		name    string
		results []error
		wantErr error
	}{
		{name: "all worked", results: []error{nil, nil}},
		{name: "idle", results: []error{jobs.ErrNothingToDo, fmt.Errorf("sync: %w", jobs.ErrNothingToDo)}},
		{name: "locked elsewhere", results: []error{jobs.ErrAlreadyRunning}},
		{name: "failure surfaces", results: []error{nil, fail}, wantErr: fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var list []*jobs.Scheduler
			for i, res := range tt.results {
				list = append(list, &jobs.Scheduler{
					Name:   fmt.Sprintf("job_%d", i),
					Runner: jobs.RunnerFunc(func(context.Context) error { return res }),
				})
			}
			err := runJobsOnce(context.Background(), list, slog.New(slog.DiscardHandler))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("runJobsOnce() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("runJobsOnce() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunJobsOnceAgainstSeededStore(t *testing.T) {
	t.Parallel()

	st, _, err := memstore.NewSeeded(context.Background())
	if err != nil {
		t.Fatalf("NewSeeded() error = %v", err)
	}
	list, err := schedulers(context.Background(), config.Config{RenewalScanInterval: time.Hour}, backend{store: st}, nil, nil)
	if err != nil {
		t.Fatalf("schedulers() error = %v", err)
	}
	if err := runJobsOnce(context.Background(), list, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("runJobsOnce() error = %v", err)
	}
}
