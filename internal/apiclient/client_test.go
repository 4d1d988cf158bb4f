package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stackspend/stackspend/internal/spend"
)

func TestLoginStoresToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode login body: %v", err)
			}
			if body["email"] != "admin@example.com" || body["password"] != "pw" {
				t.Errorf("login body = %v", body)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"token":"tok-1","expiresAt":"2026-10-18T12:00:00Z","role":"admin"}`)
		case "/api/v1/clients":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.URL.Query().Get("page"); got != "1" {
				t.Errorf("page = %q, want 1", got)
			}
			if got := r.URL.Query().Get("q"); got != "acme" {
				t.Errorf("q = %q, want acme", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"content":[{"id":4,"name":"Acme","email":"ops@acme.example"}],"totalElements":21,"totalPages":2,"number":1,"size":20}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL, "")
	tok, err := c.Login(context.Background(), "admin@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.Value != "tok-1" || tok.Role != "admin" {
		t.Fatalf("token = %+v", tok)
	}

	page, err := c.ListClients(context.Background(), ListParams{Page: 1, Query: "acme"})
	if err != nil {
		t.Fatalf("ListClients() error = %v", err)
	}
	if page.TotalElements != 21 || page.Number != 1 || len(page.Content) != 1 || page.Content[0].Name != "Acme" {
		t.Fatalf("page = %+v", page)
	}
}

func TestCreateClientValidationError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"invalid_input","message":"Validation failed.","fields":{"email":"Enter a valid email address."}}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "tok").CreateClient(context.Background(), spend.ClientInput{Name: "Acme", Email: "nope"})
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("err = %v, want ErrAPI", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "invalid_input" || apiErr.Fields["email"] == "" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestDeleteClientAndRenewals(t *testing.T) {
	t.Parallel()

	deleted := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			deleted <- r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/v1/contracts/renewals":
			if got := r.URL.Query().Get("days"); got != "45" {
				t.Errorf("days = %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"id":3,"vendor":"Slack","startDate":"2025-11-01","endDate":"2026-10-31","daysToRenewal":13,"annualCostCents":1200000}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL, "tok")
	if err := c.DeleteClient(context.Background(), 9); err != nil {
		t.Fatalf("DeleteClient() error = %v", err)
	}
	if got := <-deleted; got != "/api/v1/clients/9" {
		t.Fatalf("deleted path = %q", got)
	}

	renewals, err := c.ListRenewals(context.Background(), 45)
	if err != nil {
		t.Fatalf("ListRenewals() error = %v", err)
	}
	if len(renewals) != 1 || renewals[0].Vendor != "Slack" || renewals[0].DaysToRenewal != 13 {
		t.Fatalf("renewals = %+v", renewals)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	err := New(server.URL, "tok").DeleteClient(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Fatalf("err = %v", err)
	}
}

func TestNonJSONErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	t.Parallel()

	body := "a" + strings.Repeat("é", 150)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, body)
	}))
	defer server.Close()

	err := New(server.URL, "tok").DeleteClient(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !utf8.ValidString(apiErr.Message) {
		t.Fatalf("message is not valid UTF-8: %q", apiErr.Message)
	}
	if want := "a" + strings.Repeat("é", 99); apiErr.Message != want {
		t.Fatalf("message = %q (%d bytes), want %d bytes", apiErr.Message, len(apiErr.Message), len(want))
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "abcdef", n: 3, want: "abc"},
		{in: "aé", n: 2, want: "a"},
		{in: "日本語", n: 7, want: "日本"},
		{in: "日本語", n: 2, want: ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
