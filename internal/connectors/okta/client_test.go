package okta

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdk "github.com/okta/okta-sdk-golang/v6/okta"
	"github.com/stackspend/stackspend/internal/connectors"
)

var fastRetry = connectors.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func response(code int) *sdk.APIResponse {
	return &sdk.APIResponse{Response: &http.Response{StatusCode: code, Status: http.StatusText(code)}}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  []*sdk.APIResponse
		wantCalls int
		wantErr   bool
	}{
		{name: "ok", wantCalls: 1},
		{name: "503 then ok", failures: []*sdk.APIResponse{response(http.StatusServiceUnavailable)}, wantCalls: 2},
		{name: "transport error then ok", failures: []*sdk.APIResponse{nil}, wantCalls: 2},
		{name: "404 is final", failures: []*sdk.APIResponse{response(http.StatusNotFound)}, wantCalls: 1, wantErr: true},
		{
			name:      "gives up after max tries",
			failures:  []*sdk.APIResponse{response(http.StatusBadGateway), response(http.StatusBadGateway), response(http.StatusBadGateway)},
			wantCalls: 3,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			got, resp, err := fetch(t.Context(), fastRetry, func() ([]string, *sdk.APIResponse, error) {
				calls++
				if calls <= len(tt.failures) {
					return nil, tt.failures[calls-1], errors.New("upstream failed")
				}
				return []string{"0oa1"}, response(http.StatusOK), nil
			})
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("fetch() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("fetch() error = %v", err)
			}
			if diff := cmp.Diff([]string{"0oa1"}, got); diff != "" {
				t.Fatalf("items mismatch (-want +got):\n%s", diff)
			}
			if resp == nil || resp.Response.StatusCode != http.StatusOK {
				t.Fatalf("resp = %+v, want the successful response", resp)
			}
		})
	}
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	_, _, err := fetch(ctx, fastRetry, func() ([]string, *sdk.APIResponse, error) {
		calls++
		cancel()
		return nil, nil, context.Canceled
	})
	if err == nil || calls != 1 {
		t.Fatalf("fetch() calls = %d err = %v, want one call and an error", calls, err)
	}
}
