// Package okta reads applications and their assigned users from an Okta org.
package okta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/okta/okta-sdk-golang/v6/okta"
	"github.com/stackspend/stackspend/internal/connectors"
)

const (
	pageLimit   = 200
	userFields  = "id,status,lastLogin,profile:(email,login,displayName,firstName,lastName)"
	maxErrorLen = 2048
)

// Client reads the management API with an SSWS token.
type Client struct {
	orgURL string
	api    *sdk.APIClient
	retry  connectors.RetryPolicy
}

// User is an Okta person, reduced to what discovery needs.
type User struct {
	ID          string
	Email       string
	DisplayName string
	LastLoginAt *time.Time
}

// App is an Okta application integration.
type App struct {
	ID     string
	Label  string
	Name   string
	Status string
	// URLs are the configured sign-in and redirect addresses, most specific first.
	URLs []string
}

// Assignment is one user assigned to an app. Email comes from the app profile and may be
// empty.
type Assignment struct {
	UserID string
	Email  string
}

// New accepts a bare org domain such as "acme.okta.com" or a full URL.
func New(orgURL, token string) (*Client, error) {
	orgURL = strings.TrimRight(strings.TrimSpace(orgURL), "/")
	token = strings.TrimSpace(token)
	switch {
	case orgURL == "":
		return nil, errors.New("okta org url is required")
	case token == "":
		return nil, errors.New("okta api token is required")
	}
	if !strings.Contains(orgURL, "://") {
		orgURL = "https://" + orgURL
	}
	cfg, err := sdk.NewConfiguration(
		sdk.WithOrgUrl(orgURL),
		sdk.WithToken(token),
		sdk.WithCache(false),
		sdk.WithRequestTimeout(120),
		sdk.WithRateLimitMaxRetries(4),
		sdk.WithRateLimitMaxBackOff(30),
	)
	if err != nil {
		return nil, fmt.Errorf("okta sdk config: %w", err)
	}
	return &Client{orgURL: orgURL, api: sdk.NewAPIClient(cfg), retry: connectors.DefaultRetry}, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	first, resp, err := fetch(ctx, c.retry, c.api.UserAPI.ListUsers(ctx).
		Limit(pageLimit).
		Fields(userFields).
		Execute)
	if err != nil {
		return nil, apiError(err, resp)
	}
	var out []User
	err = drain(ctx, c.retry, first, resp, func(u sdk.User) error {
		out = append(out, toUser(u))
		return nil
	})
	return out, err
}

func toUser(u sdk.User) User {
	out := User{ID: u.GetId()}
	if p := u.Profile; p != nil {
		out.Email = firstNonEmpty(p.GetEmail(), p.GetLogin())
		out.DisplayName = firstNonEmpty(p.GetDisplayName(), p.GetFirstName()+" "+p.GetLastName())
	}
	if t, ok := u.GetLastLoginOk(); ok && t != nil && !t.IsZero() {
		out.LastLoginAt = t
	}
	return out
}

// ListApps decodes applications from their raw JSON. The typed union in the SDK rejects
// sign-on modes it does not model, so a 2xx decode failure falls back to the response body.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	typed, resp, err := fetch(ctx, c.retry, c.api.ApplicationAPI.ListApplications(ctx).Limit(pageLimit).Execute)
	var first []json.RawMessage
	switch {
	case err == nil:
		for _, app := range typed {
			raw, merr := json.Marshal(app)
			if merr != nil {
				return nil, merr
			}
			first = append(first, raw)
		}
	case succeeded(resp):
		var apiErr *sdk.GenericOpenAPIError
		if !errors.As(err, &apiErr) || json.Unmarshal(apiErr.Body(), &first) != nil {
			return nil, apiError(err, resp)
		}
	default:
		return nil, apiError(err, resp)
	}

	var out []App
	err = drain(ctx, c.retry, first, resp, func(raw json.RawMessage) error {
		app, derr := decodeApp(raw)
		if derr != nil {
			return derr
		}
		out = append(out, app)
		return nil
	})
	return out, err
}

func (c *Client) ListApplicationUsers(ctx context.Context, appID string) ([]Assignment, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.New("okta app id is required")
	}
	first, resp, err := fetch(ctx, c.retry, c.api.ApplicationUsersAPI.ListApplicationUsers(ctx, appID).Limit(pageLimit).Execute)
	if err != nil {
		return nil, apiError(err, resp)
	}
	var out []Assignment
	err = drain(ctx, c.retry, first, resp, func(u sdk.AppUser) error {
		out = append(out, Assignment{UserID: strings.TrimSpace(u.GetId()), Email: profileEmail(u.Profile)})
		return nil
	})
	return out, err
}

// drain hands every item of first and of the following Link-header pages to emit.
func drain[T any](ctx context.Context, p connectors.RetryPolicy, first []T, resp *sdk.APIResponse, emit func(T) error) error {
	page := first
	for {
		for _, item := range page {
			if err := emit(item); err != nil {
				return err
			}
		}
		if resp == nil || !resp.HasNextPage() {
			return nil
		}
		cur := resp
		next, nextResp, err := fetch(ctx, p, func() ([]T, *sdk.APIResponse, error) {
			var items []T
			r, err := cur.Next(&items)
			return items, r, err
		})
		if err != nil {
			return apiError(err, nextResp)
		}
		page, resp = next, nextResp
	}
}

// fetch runs one page request under the retry policy. Transport failures, 429 and 5xx are
// retried; the SDK's own rate-limit backoff still runs inside each try.
func fetch[T any](ctx context.Context, p connectors.RetryPolicy, call func() (T, *sdk.APIResponse, error)) (T, *sdk.APIResponse, error) {
	var resp *sdk.APIResponse
	v, err := connectors.Retry(ctx, p, func() (T, error) {
		v, r, err := call()
		resp = r
		if err != nil && !transient(ctx, r) {
			return v, connectors.Permanent(err)
		}
		return v, err
	})
	return v, resp, err
}

func transient(ctx context.Context, resp *sdk.APIResponse) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case resp == nil || resp.Response == nil:
		return true
	}
	return connectors.RetryableStatus(resp.Response.StatusCode)
}

type appPayload struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Settings struct {
		App         map[string]any `json:"app"`
		OAuthClient struct {
			InitiateLoginURI string   `json:"initiate_login_uri"`
			RedirectURIs     []string `json:"redirect_uris"`
		} `json:"oauthClient"`
		SignOn struct {
			SSOAcsURL string `json:"ssoAcsUrl"`
			Audience  string `json:"audience"`
		} `json:"signOn"`
	} `json:"settings"`
}

// decodeApp collects candidate URLs from the places each sign-on mode keeps them:
// settings.app for bookmark and SWA apps, settings.oauthClient for OIDC, settings.signOn
// for SAML.
func decodeApp(raw []byte) (App, error) {
	var p appPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return App{}, fmt.Errorf("decode okta app: %w", err)
	}
	app := App{ID: p.ID, Label: p.Label, Name: p.Name, Status: p.Status}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			app.URLs = append(app.URLs, s)
		}
	}
	for _, key := range []string{"url", "baseURL", "baseUrl", "loginUrl", "siteURL", "domain"} {
		if s, ok := p.Settings.App[key].(string); ok {
			add(s)
		}
	}
	add(p.Settings.OAuthClient.InitiateLoginURI)
	for _, u := range p.Settings.OAuthClient.RedirectURIs {
		add(u)
	}
	add(p.Settings.SignOn.SSOAcsURL)
	add(p.Settings.SignOn.Audience)
	return app, nil
}

// profileEmail reads profile.email whatever shape the SDK gives the app profile.
func profileEmail(profile any) string {
	raw, err := json.Marshal(profile)
	if err != nil {
		return ""
	}
	var p struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &p) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Email))
}

func succeeded(resp *sdk.APIResponse) bool {
	return resp != nil && resp.Response != nil && resp.Response.StatusCode >= http.StatusOK && resp.Response.StatusCode < http.StatusMultipleChoices
}

// apiError prefers Okta's errorSummary, then a truncated body, then the transport error.
func apiError(err error, resp *sdk.APIResponse) error {
	if err == nil {
		return nil
	}
	status := ""
	if resp != nil && resp.Response != nil {
		status = resp.Response.Status + ": "
	}
	var apiErr *sdk.GenericOpenAPIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("okta api: %s%w", status, err)
	}
	if succeeded(resp) {
		return fmt.Errorf("okta api decode: %s%s", status, strings.TrimSpace(apiErr.Error()))
	}
	switch m := apiErr.Model().(type) {
	case sdk.Error:
		if s := strings.TrimSpace(m.GetErrorSummary()); s != "" {
			return fmt.Errorf("okta api: %s%s", status, s)
		}
	case *sdk.Error:
		if s := strings.TrimSpace(m.GetErrorSummary()); s != "" {
			return fmt.Errorf("okta api: %s%s", status, s)
		}
	}
	body := strings.TrimSpace(string(apiErr.Body()))
	if len(body) > maxErrorLen {
		body = body[:maxErrorLen] + "..."
	}
	if body == "" {
		return fmt.Errorf("okta api: %s%w", status, err)
	}
	return fmt.Errorf("okta api: %s%s", status, body)
}
