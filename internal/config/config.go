package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = ":9090"

	defaultDatabaseMaxConns = 10

	defaultAPITokenTTL           = 12 * time.Hour
	defaultRenewalScanInterval   = time.Hour
	defaultDiscoverySyncInterval = 6 * time.Hour
	defaultCostImportInterval    = 24 * time.Hour
	defaultJobFailureBackoffMax  = 30 * time.Minute
	defaultLogoCacheTTL          = 24 * time.Hour
	defaultLogoProbeTimeout      = 3 * time.Second
)

type Config struct {
	DatabaseURL      string
	DatabaseMaxConns int
	UseMockData      bool
	HTTPAddr         string
	MetricsAddr      string
	AuthCookieSecure bool

	APITokenSecret string
	APITokenTTL    time.Duration

	JobsEnabled           bool
	RenewalScanInterval   time.Duration
	DiscoverySyncInterval time.Duration
	CostImportInterval    time.Duration
	JobFailureBackoffMax  time.Duration

	LogoCacheTTL     time.Duration
	LogoProbeTimeout time.Duration

	Okta            OktaConfig
	GoogleWorkspace GoogleWorkspaceConfig
	Entra           EntraConfig
	AWSIdentity     AWSIdentityCenterConfig
	AWSCost         AWSCostConfig
	Vault           VaultConfig
	API             APIClientConfig
}

// OktaConfig enables the Okta discovery source when both fields are set.
type OktaConfig struct {
	Domain string
	Token  string
}

func (c OktaConfig) Enabled() bool { return c.Domain != "" && c.Token != "" }

type GoogleWorkspaceConfig struct {
	CredentialsJSON string
	AdminEmail      string
	CustomerID      string
}

func (c GoogleWorkspaceConfig) Enabled() bool {
	return c.CredentialsJSON != "" && c.AdminEmail != ""
}

// EntraConfig is an app registration allowed to read service principals and sign-in logs.
type EntraConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

func (c EntraConfig) Enabled() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

type AWSIdentityCenterConfig struct {
	Region          string
	InstanceARN     string
	IdentityStoreID string
}

func (c AWSIdentityCenterConfig) Enabled() bool {
	return c.Region != "" && c.IdentityStoreID != ""
}

// AWSCostConfig names the application that receives imported Cost Explorer totals.
type AWSCostConfig struct {
	Region      string
	Application string
}

func (c AWSCostConfig) Enabled() bool { return c.Application != "" }

type VaultConfig struct {
	Addr      string
	Token     string
	Namespace string
}

func (c VaultConfig) Enabled() bool { return c.Addr != "" }

// APIClientConfig is read by the api subcommands.
type APIClientConfig struct {
	URL   string
	Token string
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseMaxConns: getenvIntDefault("DATABASE_MAX_CONNS", defaultDatabaseMaxConns),
		UseMockData:      getenvBoolDefault("USE_MOCK_DATA", false),
		HTTPAddr:         getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:      getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		AuthCookieSecure: getenvBoolDefault("AUTH_COOKIE_SECURE", false),

		APITokenSecret: os.Getenv("API_TOKEN_SECRET"),
		APITokenTTL:    getenvDurationDefault("API_TOKEN_TTL", defaultAPITokenTTL),

		JobsEnabled:           getenvBoolDefault("JOBS_ENABLED", true),
		RenewalScanInterval:   getenvDurationDefault("RENEWAL_SCAN_INTERVAL", defaultRenewalScanInterval),
		DiscoverySyncInterval: getenvDurationDefault("DISCOVERY_SYNC_INTERVAL", defaultDiscoverySyncInterval),
		CostImportInterval:    getenvDurationDefault("COST_IMPORT_INTERVAL", defaultCostImportInterval),
		JobFailureBackoffMax:  getenvDurationDefault("JOB_FAILURE_BACKOFF_MAX", defaultJobFailureBackoffMax),

		LogoCacheTTL:     getenvDurationDefault("LOGO_CACHE_TTL", defaultLogoCacheTTL),
		LogoProbeTimeout: getenvDurationDefault("LOGO_PROBE_TIMEOUT", defaultLogoProbeTimeout),

		Okta: OktaConfig{
			Domain: strings.TrimSpace(os.Getenv("OKTA_DOMAIN")),
			Token:  os.Getenv("OKTA_TOKEN"),
		},
		GoogleWorkspace: GoogleWorkspaceConfig{
			CredentialsJSON: os.Getenv("GOOGLE_WORKSPACE_CREDENTIALS_JSON"),
			AdminEmail:      strings.TrimSpace(os.Getenv("GOOGLE_WORKSPACE_ADMIN_EMAIL")),
			CustomerID:      getenvDefault("GOOGLE_WORKSPACE_CUSTOMER_ID", "my_customer"),
		},
		Entra: EntraConfig{
			TenantID:     strings.TrimSpace(os.Getenv("ENTRA_TENANT_ID")),
			ClientID:     strings.TrimSpace(os.Getenv("ENTRA_CLIENT_ID")),
			ClientSecret: os.Getenv("ENTRA_CLIENT_SECRET"),
		},
		AWSIdentity: AWSIdentityCenterConfig{
			Region:          strings.TrimSpace(os.Getenv("AWS_IDC_REGION")),
			InstanceARN:     strings.TrimSpace(os.Getenv("AWS_IDC_INSTANCE_ARN")),
			IdentityStoreID: strings.TrimSpace(os.Getenv("AWS_IDC_IDENTITY_STORE_ID")),
		},
		AWSCost: AWSCostConfig{
			Region:      getenvDefault("AWS_COST_REGION", "us-east-1"),
			Application: strings.TrimSpace(os.Getenv("AWS_COST_APPLICATION")),
		},
		Vault: VaultConfig{
			Addr:      strings.TrimSpace(os.Getenv("VAULT_ADDR")),
			Token:     os.Getenv("VAULT_TOKEN"),
			Namespace: strings.TrimSpace(os.Getenv("VAULT_NAMESPACE")),
		},
		API: APIClientConfig{
			URL:   getenvDefault("STACKSPEND_API_URL", "http://localhost:8080"),
			Token: os.Getenv("STACKSPEND_API_TOKEN"),
		},
	}

	if opts.RequireDatabaseURL && !cfg.UseMockData && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

// MetricsEnabled reports whether the Prometheus listener should start.
func (c Config) MetricsEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.MetricsAddr)) {
	case "", "off", "disabled", "false":
		return false
	}
	return true
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
