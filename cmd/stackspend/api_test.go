package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stackspend/stackspend/internal/apiclient"
)

// runCLI executes the root command against args. Commands keep their flags in package
// variables, so callers must not run in parallel.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetCommandExecutionContext)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute()
	return out.String(), err
}

func TestAPIRenewalsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/contracts/renewals" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cli-token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Missing or invalid token."}`))
			return
		}
		if got := r.URL.Query().Get("days"); got != "45" {
			t.Errorf("days = %q, want 45", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"applicationId":3,"applicationName":"Figma","vendor":"Figma Inc",` +
			`"status":"active","startDate":"2025-04-01","endDate":"2026-03-31","renewalDate":"2026-04-01",` +
			`"valueCents":1440000,"currency":"USD","termMonths":12,"autoRenew":true,"noticeDays":30,` +
			`"daysToRenewal":22,"monthlyCostCents":120000,"annualCostCents":1440000,"noticeDeadline":"2026-03-02"}]`))
	}))
	defer server.Close()

	out, err := runCLI(t, "api", "contracts", "renewals", "--url", server.URL, "--token", "cli-token", "--days", "45")
	if err != nil {
		t.Fatalf("renewals error = %v", err)
	}
	for _, want := range []string{"2026-04-01", "Figma", "$14,400.00", "22"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	_, err = runCLI(t, "api", "contracts", "renewals", "--url", server.URL, "--token", "stale", "--days", "45")
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != exitUnauthorized {
		t.Fatalf("stale token error = %#v, want exit code %d", err, exitUnauthorized)
	}
}

func TestAPIExit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unauthorized", err: &apiclient.APIError{StatusCode: http.StatusUnauthorized}, want: exitUnauthorized},
		{name: "validation", err: &apiclient.APIError{StatusCode: http.StatusUnprocessableEntity, Fields: map[string]string{"email": "Invalid."}}, want: exitRejected},
		{name: "conflict", err: &apiclient.APIError{StatusCode: http.StatusConflict}, want: exitRejected},
		{name: "server error", err: &apiclient.APIError{StatusCode: http.StatusInternalServerError}, want: 1},
		{name: "transport", err: errors.New("connection refused"), want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := 1
			var ee *exitError
			if errors.As(apiExit(tc.err), &ee) {
				got = ee.code
			}
			if got != tc.want {
				t.Fatalf("exit code = %d, want %d", got, tc.want)
			}
			if !errors.Is(apiExit(tc.err), tc.err) {
				t.Fatal("apiExit should wrap the original error")
			}
		})
	}
}
