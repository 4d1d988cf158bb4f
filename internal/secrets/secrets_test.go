package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stackspend/stackspend/internal/config"
)

func newVaultServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Vault-Token"); got != "root" {
			http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
			return
		}
		var body any
		switch r.URL.Path {
		case "/v1/secret/data/stackspend":
			body = map[string]any{"data": map[string]any{
				"data":     map[string]any{"okta_token": "00abc"},
				"metadata": map[string]any{"version": 3},
			}}
		case "/v1/kv/legacy":
			body = map[string]any{"data": map[string]any{"api_secret": "legacy-secret-value"}}
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve(t *testing.T) {
	t.Parallel()
	srv := newVaultServer(t)
	r, err := NewResolver(config.VaultConfig{Addr: srv.URL, Token: "root"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	r.lookupEnv = func(name string) (string, bool) {
		if name == "OKTA_TOKEN_FILE" {
			return "from-env", true
		}
		return "", false
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "literal", raw: "plain-value", want: "plain-value"},
		{name: "env", raw: "env:OKTA_TOKEN_FILE", want: "from-env"},
		{name: "env missing", raw: "env:NOPE", wantErr: true},
		{name: "kv v2", raw: "vault:secret/data/stackspend#okta_token", want: "00abc"},
		{name: "kv v1", raw: "vault:kv/legacy#api_secret", want: "legacy-secret-value"},
		{name: "missing key", raw: "vault:kv/legacy#other", wantErr: true},
		{name: "missing path", raw: "vault:kv/absent#x", wantErr: true},
		{name: "malformed", raw: "vault:kv/legacy", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.Resolve(context.Background(), tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveVaultWithoutAddress(t *testing.T) {
	t.Parallel()
	r, err := NewResolver(config.VaultConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "vault:kv/x#y"); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
}

func TestResolveConfig(t *testing.T) {
	t.Parallel()
	srv := newVaultServer(t)
	r, err := NewResolver(config.VaultConfig{Addr: srv.URL, Token: "root"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cfg := config.Config{APITokenSecret: "vault:kv/legacy#api_secret"}
	cfg.Okta.Token = "literal-token"
	if err := r.ResolveConfig(context.Background(), &cfg); err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.APITokenSecret != "legacy-secret-value" {
		t.Fatalf("APITokenSecret = %q", cfg.APITokenSecret)
	}
	if cfg.Okta.Token != "literal-token" {
		t.Fatalf("Okta.Token = %q", cfg.Okta.Token)
	}
}
