// Package secrets resolves secret references in configuration values.
//
// A value of the form "vault:<path>#<key>" is read from Vault (KV v1 or v2), "env:<NAME>"
// is read from the environment, and anything else is returned unchanged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/stackspend/stackspend/internal/config"
)

const (
	vaultPrefix = "vault:"
	envPrefix   = "env:"
)

var ErrUnresolved = errors.New("secret reference could not be resolved")

type Resolver struct {
	vault     *vaultapi.Client
	lookupEnv func(string) (string, bool)
}

// NewResolver builds a resolver. Vault references fail with ErrUnresolved when cfg.Addr is empty.
func NewResolver(cfg config.VaultConfig) (*Resolver, error) {
	r := &Resolver{lookupEnv: os.LookupEnv}
	if !cfg.Enabled() {
		return r, nil
	}

	vcfg := vaultapi.DefaultConfig()
	vcfg.Address = cfg.Addr
	vcfg.HttpClient = &http.Client{Timeout: 30 * time.Second}
	client, err := vaultapi.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		client.SetToken(token)
	}
	r.vault = client
	return r, nil
}

// IsReference reports whether raw needs resolving.
func IsReference(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, vaultPrefix) || strings.HasPrefix(raw, envPrefix)
}

func (r *Resolver) Resolve(ctx context.Context, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, envPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, envPrefix))
		if name == "" {
			return "", fmt.Errorf("%w: empty env reference", ErrUnresolved)
		}
		v, ok := r.lookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: env %s is not set", ErrUnresolved, name)
		}
		return v, nil
	case strings.HasPrefix(trimmed, vaultPrefix):
		return r.readVault(ctx, strings.TrimPrefix(trimmed, vaultPrefix))
	default:
		return raw, nil
	}
}

func (r *Resolver) readVault(ctx context.Context, ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	path = strings.Trim(strings.TrimSpace(path), "/")
	key = strings.TrimSpace(key)
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("%w: vault reference must look like vault:<path>#<key>", ErrUnresolved)
	}
	if r.vault == nil {
		return "", fmt.Errorf("%w: VAULT_ADDR is not configured", ErrUnresolved)
	}

	secret, err := r.vault.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: vault path %s not found", ErrUnresolved, path)
	}

	data := secret.Data
	// KV v2 nests the payload under "data" next to "metadata".
	if inner, ok := data["data"].(map[string]any); ok {
		if _, hasMeta := data["metadata"]; hasMeta {
			data = inner
		}
	}
	v, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: key %q missing at %s", ErrUnresolved, key, path)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q at %s is not a string", ErrUnresolved, key, path)
	}
	return s, nil
}

// ResolveConfig replaces every secret-bearing config value that is a reference.
func (r *Resolver) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	targets := []struct {
		name  string
		value *string
	}{
		{"OKTA_TOKEN", &cfg.Okta.Token},
		{"GOOGLE_WORKSPACE_CREDENTIALS_JSON", &cfg.GoogleWorkspace.CredentialsJSON},
		{"ENTRA_CLIENT_SECRET", &cfg.Entra.ClientSecret},
		{"API_TOKEN_SECRET", &cfg.APITokenSecret},
		{"STACKSPEND_API_TOKEN", &cfg.API.Token},
	}
	for _, t := range targets {
		if !IsReference(*t.value) {
			continue
		}
		v, err := r.Resolve(ctx, *t.value)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", t.name, err)
		}
		*t.value = v
	}
	return nil
}
