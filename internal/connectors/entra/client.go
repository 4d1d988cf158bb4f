// Package entra discovers enterprise applications registered in a Microsoft Entra ID tenant
// and who signed in to them.
package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/connectors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultAuthority    = "https://login.microsoftonline.com"
	graphScope          = "https://graph.microsoft.com/.default"
	defaultTimeout      = 120 * time.Second
	pageSize            = "999"
)

type ClientOptions struct {
	HTTPClient   *http.Client
	GraphBaseURL string
	// AuthorityURL overrides the login endpoint the client credentials are exchanged at.
	AuthorityURL string
	TokenSource  oauth2.TokenSource
	Retry        connectors.RetryPolicy
}

type Client struct {
	http  *resty.Client
	retry connectors.RetryPolicy
}

type ServicePrincipal struct {
	ID                     string   `json:"id"`
	AppID                  string   `json:"appId"`
	DisplayName            string   `json:"displayName"`
	PublisherName          string   `json:"publisherName"`
	Homepage               string   `json:"homepage"`
	AccountEnabled         bool     `json:"accountEnabled"`
	ServicePrincipalType   string   `json:"servicePrincipalType"`
	AppOwnerOrganizationID string   `json:"appOwnerOrganizationId"`
	Tags                   []string `json:"tags"`
}

type SignIn struct {
	ID                string    `json:"id"`
	CreatedDateTime   time.Time `json:"createdDateTime"`
	AppID             string    `json:"appId"`
	AppDisplayName    string    `json:"appDisplayName"`
	UserID            string    `json:"userId"`
	UserDisplayName   string    `json:"userDisplayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
}

// NewClient authenticates with the app registration's client secret.
func NewClient(ctx context.Context, cfg config.EntraConfig, opts ClientOptions) (*Client, error) {
	ts := opts.TokenSource
	if ts == nil {
		tenant := strings.TrimSpace(cfg.TenantID)
		if tenant == "" {
			return nil, errors.New("entra tenant id is required")
		}
		if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
			return nil, errors.New("entra client id and secret are required")
		}
		authority := strings.TrimRight(strings.TrimSpace(opts.AuthorityURL), "/")
		if authority == "" {
			authority = defaultAuthority
		}
		cc := clientcredentials.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     authority + "/" + url.PathEscape(tenant) + "/oauth2/v2.0/token",
			Scopes:       []string{graphScope},
		}
		if opts.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
		}
		ts = cc.TokenSource(ctx)
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	hc := &http.Client{
		Timeout:   defaultTimeout,
		Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: base.Transport},
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.GraphBaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	retry := opts.Retry
	if retry.MaxTries == 0 {
		retry = connectors.DefaultRetry
	}
	return &Client{
		http: resty.NewWithClient(hc).
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetHeader("ConsistencyLevel", "eventual"),
		retry: retry,
	}, nil
}

func (c *Client) ListServicePrincipals(ctx context.Context) ([]ServicePrincipal, error) {
	items, err := c.listPaged(ctx, "/servicePrincipals", url.Values{
		"$select": []string{"id,appId,displayName,publisherName,homepage,accountEnabled,servicePrincipalType,appOwnerOrganizationId,tags"},
		"$top":    []string{pageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("entra list service principals: %w", err)
	}
	return decodeAll[ServicePrincipal](items, "service principal")
}

// ListSignIns returns interactive sign-ins at or after since, newest first.
func (c *Client) ListSignIns(ctx context.Context, since time.Time) ([]SignIn, error) {
	query := url.Values{
		"$select":  []string{"id,createdDateTime,appId,appDisplayName,userId,userDisplayName,userPrincipalName"},
		"$orderby": []string{"createdDateTime desc"},
		"$top":     []string{pageSize},
	}
	if !since.IsZero() {
		query.Set("$filter", "createdDateTime ge "+since.UTC().Format(time.RFC3339))
	}
	items, err := c.listPaged(ctx, "/auditLogs/signIns", query)
	if err != nil {
		return nil, fmt.Errorf("entra list sign-ins: %w", err)
	}
	return decodeAll[SignIn](items, "sign-in")
}

func decodeAll[T any](items []json.RawMessage, what string) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode entra %s: %w", what, err)
		}
		out = append(out, v)
	}
	return out, nil
}

type pageResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// listPaged follows @odata.nextLink. Next links are absolute and already carry the query.
func (c *Client) listPaged(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for {
		page, err := c.getPage(ctx, path, query)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		next := strings.TrimSpace(page.NextLink)
		if next == "" {
			return all, nil
		}
		path, query = next, nil
	}
}

func (c *Client) getPage(ctx context.Context, path string, query url.Values) (pageResponse, error) {
	return connectors.Retry(ctx, c.retry, func() (pageResponse, error) {
		var page pageResponse
		req := c.http.R().SetContext(ctx).SetResult(&page)
		if query != nil {
			req.SetQueryParamsFromValues(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return page, connectors.Permanent(ctx.Err())
			}
			return page, err
		}
		if err := connectors.CheckStatus("microsoft graph", resp.StatusCode(), resp.String()); err != nil {
			return page, err
		}
		return page, nil
	})
}
