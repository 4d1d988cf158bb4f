// Package apiclient is a typed client for the /api/v1 REST API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/spend"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 200
)

// ErrAPI matches every error response decoded from the server.
var ErrAPI = errors.New("api error")

// APIError is the server's JSON error body plus the HTTP status.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"error"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api: %d", e.StatusCode)
	if e.Code != "" {
		b.WriteString(" " + e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return ErrAPI }

type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *resty.Client) {
		if hc != nil {
			c.SetTransport(hc.Transport)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// New returns a client for baseURL (for example http://localhost:8080). token may be empty
// until Login is called.
func New(baseURL, token string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/v1"
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})
	if token = strings.TrimSpace(token); token != "" {
		rc.SetAuthToken(token)
	}
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// Login exchanges credentials for a bearer token and uses it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (auth.IssuedToken, error) {
	var out auth.IssuedToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err := check(resp, err); err != nil {
		return auth.IssuedToken{}, err
	}
	c.http.SetAuthToken(out.Value)
	return out, nil
}

// ListParams mirrors the server's query parameters. Page is 0-based.
type ListParams struct {
	Page  int
	Size  int
	Query string
	Sort  string
}

func (p ListParams) values() map[string]string {
	v := map[string]string{}
	if p.Page > 0 {
		v["page"] = strconv.Itoa(p.Page)
	}
	if p.Size > 0 {
		v["size"] = strconv.Itoa(p.Size)
	}
	if q := strings.TrimSpace(p.Query); q != "" {
		v["q"] = q
	}
	if s := strings.TrimSpace(p.Sort); s != "" {
		v["sort"] = s
	}
	return v
}

// Page is the listing envelope as it travels on the wire. Number is 0-based, matching
// ListParams.Page.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

func (c *Client) ListClients(ctx context.Context, params ListParams) (Page[spend.Client], error) {
	var out Page[spend.Client]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params.values()).
		SetResult(&out).
		Get("/clients")
	if err := check(resp, err); err != nil {
		return Page[spend.Client]{}, err
	}
	return out, nil
}

func (c *Client) CreateClient(ctx context.Context, in spend.ClientInput) (spend.Client, error) {
	var out spend.Client
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		Post("/clients")
	if err := check(resp, err); err != nil {
		return spend.Client{}, err
	}
	return out, nil
}

func (c *Client) DeleteClient(ctx context.Context, id int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Delete("/clients/{id}")
	return check(resp, err)
}

// ListRenewals returns contracts renewing within days (server default when days <= 0).
func (c *Client) ListRenewals(ctx context.Context, days int) ([]spend.ContractDetail, error) {
	var out []spend.ContractDetail
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if days > 0 {
		req.SetQueryParam("days", strconv.Itoa(days))
	}
	resp, err := req.Get("/contracts/renewals")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	if apiErr, ok := resp.Error().(*APIError); ok && apiErr.Code != "" {
		out := *apiErr
		out.StatusCode = resp.StatusCode()
		return &out
	}
	out := &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	// Bodies from proxies and the like are not JSON; keep a short excerpt.
	if body := strings.TrimSpace(resp.String()); body != "" && !json.Valid([]byte(body)) {
		out.Message = truncate(body, maxErrorBody)
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
