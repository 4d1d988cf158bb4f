// Package googleworkspace discovers third-party apps from the OAuth tokens Workspace users
// have granted.
package googleworkspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/connectors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	directoryURL   = "https://admin.googleapis.com/admin/directory/v1"
	requestTimeout = 2 * time.Minute
	usersPageSize  = "500"
)

// Read-only directory access plus the security scope that exposes per-user tokens.
var delegatedScopes = []string{
	"https://www.googleapis.com/auth/admin.directory.user.readonly",
	"https://www.googleapis.com/auth/admin.directory.user.security",
}

type Options struct {
	HTTPClient       *http.Client
	DirectoryBaseURL string
	// TokenSource replaces the delegated service account token source.
	TokenSource oauth2.TokenSource
	Retry       connectors.RetryPolicy
}

// Client is a thin Admin SDK Directory client.
type Client struct {
	http  *resty.Client
	retry connectors.RetryPolicy
}

type User struct {
	ID            string `json:"id"`
	PrimaryEmail  string `json:"primaryEmail"`
	Suspended     bool   `json:"suspended"`
	LastLoginTime string `json:"lastLoginTime"`
	Name          struct {
		FullName string `json:"fullName"`
	} `json:"name"`
}

// LastLogin returns nil for users who never signed in. Google reports those as the epoch.
func (u User) LastLogin() *time.Time {
	t := parseTime(u.LastLoginTime)
	if t.Unix() <= 0 {
		return nil
	}
	return &t
}

// Grant is one OAuth token a user issued to a client.
type Grant struct {
	UserKey     string   `json:"userKey"`
	ClientID    string   `json:"clientId"`
	DisplayText string   `json:"displayText"`
	NativeApp   bool     `json:"nativeApp"`
	Anonymous   bool     `json:"anonymous"`
	Scopes      []string `json:"scopes"`
}

// New authenticates as the configured admin through domain-wide delegation.
func New(ctx context.Context, cfg config.GoogleWorkspaceConfig, opts Options) (*Client, error) {
	ts := opts.TokenSource
	if ts == nil {
		var err error
		if ts, err = delegatedTokenSource(ctx, cfg); err != nil {
			return nil, err
		}
	}

	var transport http.RoundTripper
	if opts.HTTPClient != nil {
		transport = opts.HTTPClient.Transport
	}
	hc := &http.Client{
		Timeout:   requestTimeout,
		Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: transport},
	}

	base := strings.TrimRight(strings.TrimSpace(opts.DirectoryBaseURL), "/")
	if base == "" {
		base = directoryURL
	}
	retry := opts.Retry
	if retry.MaxTries == 0 {
		retry = connectors.DefaultRetry
	}
	return &Client{
		http:  resty.NewWithClient(hc).SetBaseURL(base).SetHeader("Accept", "application/json"),
		retry: retry,
	}, nil
}

func delegatedTokenSource(ctx context.Context, cfg config.GoogleWorkspaceConfig) (oauth2.TokenSource, error) {
	subject := strings.TrimSpace(cfg.AdminEmail)
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) == "":
		return nil, errors.New("google workspace credentials json is required")
	case subject == "":
		return nil, errors.New("google workspace admin email is required")
	}
	jwt, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), delegatedScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account json: %w", err)
	}
	jwt.Subject = subject
	return jwt.TokenSource(ctx), nil
}

func (c *Client) ListUsers(ctx context.Context, customerID string) ([]User, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("google workspace customer id is required")
	}
	query := url.Values{"customer": {customerID}, "maxResults": {usersPageSize}, "orderBy": {"email"}}
	return collect(ctx, c, "/users", query, func(p page[User]) []User { return p.Users })
}

// ListTokens returns the OAuth grants userKey has issued. Unknown users yield no grants.
func (c *Client) ListTokens(ctx context.Context, userKey string) ([]Grant, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, errors.New("google workspace user key is required")
	}
	grants, err := collect(ctx, c, "/users/"+url.PathEscape(userKey)+"/tokens", nil, func(p page[Grant]) []Grant { return p.Items })
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range grants {
		if grants[i].UserKey == "" {
			grants[i].UserKey = userKey
		}
	}
	return grants, nil
}

var errNotFound = errors.New("google api resource not found")

// page is the Directory API list envelope. Users lists fill Users, everything else Items.
type page[T any] struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []T    `json:"items"`
	Users         []T    `json:"users"`
}

// collect follows nextPageToken until the listing is exhausted. Each page is retried on
// its own; a 404 stops immediately with errNotFound.
func collect[T any](ctx context.Context, c *Client, path string, query url.Values, items func(page[T]) []T) ([]T, error) {
	out := []T{}
	token := ""
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if token != "" {
			q.Set("pageToken", token)
		}
		p, err := connectors.Retry(ctx, c.retry, func() (page[T], error) {
			var p page[T]
			resp, err := c.http.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&p).Get(path)
			switch {
			case err != nil && ctx.Err() != nil:
				return p, connectors.Permanent(ctx.Err())
			case err != nil:
				return p, err
			case resp.StatusCode() == http.StatusNotFound:
				return p, connectors.Permanent(errNotFound)
			}
			return p, connectors.CheckStatus("google workspace", resp.StatusCode(), resp.String())
		})
		if err != nil {
			return nil, err
		}
		out = append(out, items(p)...)
		if token = strings.TrimSpace(p.NextPageToken); token == "" {
			return out, nil
		}
	}
}

// parseTime accepts RFC 3339 or unix milliseconds. Anything else is the zero time.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
