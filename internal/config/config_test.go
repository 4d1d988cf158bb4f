package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "USE_MOCK_DATA", "HTTP_ADDR", "METRICS_ADDR", "API_TOKEN_TTL",
		"JOBS_ENABLED", "RENEWAL_SCAN_INTERVAL", "DISCOVERY_SYNC_INTERVAL", "LOGO_PROBE_TIMEOUT",
		"DATABASE_MAX_CONNS", "OKTA_DOMAIN", "OKTA_TOKEN", "AWS_COST_APPLICATION",
		"ENTRA_TENANT_ID", "ENTRA_CLIENT_ID", "ENTRA_CLIENT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWithOptions_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.MetricsAddr)
	}
	if cfg.APITokenTTL != 12*time.Hour {
		t.Fatalf("APITokenTTL = %s, want 12h", cfg.APITokenTTL)
	}
	if !cfg.JobsEnabled || cfg.UseMockData {
		t.Fatalf("JobsEnabled = %v UseMockData = %v", cfg.JobsEnabled, cfg.UseMockData)
	}
	if cfg.RenewalScanInterval != time.Hour || cfg.DiscoverySyncInterval != 6*time.Hour {
		t.Fatalf("intervals = %s %s", cfg.RenewalScanInterval, cfg.DiscoverySyncInterval)
	}
	if cfg.LogoProbeTimeout != 3*time.Second {
		t.Fatalf("LogoProbeTimeout = %s", cfg.LogoProbeTimeout)
	}
	if cfg.DatabaseMaxConns != defaultDatabaseMaxConns {
		t.Fatalf("DatabaseMaxConns = %d", cfg.DatabaseMaxConns)
	}
	if cfg.Okta.Enabled() || cfg.AWSCost.Enabled() {
		t.Fatal("integrations should be disabled without env")
	}
}

func TestLoadWithOptions_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENEWAL_SCAN_INTERVAL", "soon")
	t.Setenv("LOGO_PROBE_TIMEOUT", "-1s")
	t.Setenv("DATABASE_MAX_CONNS", "zero")
	t.Setenv("JOBS_ENABLED", "yes")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.RenewalScanInterval != defaultRenewalScanInterval {
		t.Fatalf("RenewalScanInterval = %s", cfg.RenewalScanInterval)
	}
	if cfg.LogoProbeTimeout != defaultLogoProbeTimeout {
		t.Fatalf("LogoProbeTimeout = %s", cfg.LogoProbeTimeout)
	}
	if cfg.DatabaseMaxConns != defaultDatabaseMaxConns {
		t.Fatalf("DatabaseMaxConns = %d", cfg.DatabaseMaxConns)
	}
	if !cfg.JobsEnabled {
		t.Fatal("JobsEnabled should keep its default for unknown values")
	}
}

func TestLoadWithOptions_ParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCOVERY_SYNC_INTERVAL", "27m")
	t.Setenv("METRICS_ADDR", "off")
	t.Setenv("OKTA_DOMAIN", "acme.okta.com")
	t.Setenv("OKTA_TOKEN", "ssws")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.DiscoverySyncInterval.String() != "27m0s" {
		t.Fatalf("DiscoverySyncInterval = %s, want %s", cfg.DiscoverySyncInterval, "27m0s")
	}
	if cfg.MetricsEnabled() {
		t.Fatal("METRICS_ADDR=off should disable metrics")
	}
	if !cfg.Okta.Enabled() {
		t.Fatal("Okta should be enabled")
	}
	if cfg.Entra.Enabled() {
		t.Fatal("Entra should need tenant, client id and secret")
	}
}

func TestLoadWithOptions_DatabaseURLRequirement(t *testing.T) {
	clearEnv(t)

	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}

	t.Setenv("USE_MOCK_DATA", "1")
	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
	if err != nil {
		t.Fatalf("mock mode should not need DATABASE_URL: %v", err)
	}
	if !cfg.UseMockData {
		t.Fatal("UseMockData = false")
	}
}
