package entra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/connectors"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
	"golang.org/x/oauth2"
)

type fakeDirectory struct {
	sps     []ServicePrincipal
	signIns []SignIn
	since   time.Time
	err     error
}

func (f *fakeDirectory) ListServicePrincipals(context.Context) ([]ServicePrincipal, error) {
	return f.sps, f.err
}

func (f *fakeDirectory) ListSignIns(_ context.Context, since time.Time) ([]SignIn, error) {
	f.since = since
	return f.signIns, nil
}

func TestCollectBuildsObservations(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	early := now.Add(-72 * time.Hour)
	late := now.Add(-2 * time.Hour)
	dir := &fakeDirectory{
		sps: []ServicePrincipal{
			{AppID: "A1", DisplayName: "Slack", Homepage: "https://app.slack.com/sso", PublisherName: "Slack Technologies", AccountEnabled: true},
			{AppID: "A2", DisplayName: "Miro", AccountEnabled: true, Tags: []string{integratedAppTag}},
			{AppID: "A3", DisplayName: "Office 365 Exchange Online", AccountEnabled: true, AppOwnerOrganizationID: microsoftTenantID},
			{AppID: "A4", DisplayName: "Disabled app", AccountEnabled: false, Tags: []string{integratedAppTag}},
			{AppID: "A5", DisplayName: "Never used", AccountEnabled: true},
		},
		signIns: []SignIn{
			{AppID: "a1", UserPrincipalName: "Ana@Acme.example", UserDisplayName: "Ana", CreatedDateTime: early},
			{AppID: "A1", UserPrincipalName: "ana@acme.example", UserDisplayName: "Ana", CreatedDateTime: late},
			{AppID: "A1", UserPrincipalName: "bo@acme.example", UserDisplayName: "Bo", CreatedDateTime: early},
			{AppID: "A3", UserPrincipalName: "bo@acme.example", CreatedDateTime: late},
			{AppID: "unknown", UserPrincipalName: "bo@acme.example", CreatedDateTime: late},
		},
	}
	src := newSource(dir)
	src.now = func() time.Time { return now }

	got, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if want := now.Add(-defaultLookback); !dir.since.Equal(want) {
		t.Fatalf("sign-ins since = %s, want %s", dir.since, want)
	}

	want := []discovery.Observation{
		{
			CanonicalKey: "name:miro:entra_id",
			DisplayName:  "Miro",
			Source:       discovery.SourceEntra,
			ObservedAt:   now,
			Users:        []spend.DiscoveredUser{},
		},
		{
			CanonicalKey: "domain:slack.com",
			DisplayName:  "Slack",
			Domain:       "slack.com",
			VendorName:   "Slack Technologies",
			Source:       discovery.SourceEntra,
			ObservedAt:   now,
			Users: []spend.DiscoveredUser{
				{Email: "ana@acme.example", DisplayName: "Ana", LastSeenAt: &late, Source: discovery.SourceEntra},
				{Email: "bo@acme.example", DisplayName: "Bo", LastSeenAt: &early, Source: discovery.SourceEntra},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("observations (-want +got):\n%s", diff)
	}
}

func TestCollectPropagatesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("graph down")
	_, err := newSource(&fakeDirectory{err: boom}).Collect(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Collect() error = %v, want %v", err, boom)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(context.Background(), config.EntraConfig{ClientID: "c", ClientSecret: "s"}, ClientOptions{}); err == nil {
		t.Fatal("expected missing tenant error")
	}
	if _, err := NewClient(context.Background(), config.EntraConfig{TenantID: "t"}, ClientOptions{}); err == nil {
		t.Fatal("expected missing client credentials error")
	}
}

func TestListServicePrincipalsFollowsNextLink(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer graph-token" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch calls.Add(1) {
		case 1:
			if !strings.Contains(r.URL.Query().Get("$select"), "appOwnerOrganizationId") {
				t.Errorf("missing $select, query = %q", r.URL.RawQuery)
			}
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			_, _ = w.Write([]byte(`{"value":[{"appId":"A1","displayName":"Slack","accountEnabled":true}],` +
				`"@odata.nextLink":"` + server.URL + `/v1.0/servicePrincipals?$skiptoken=abc"}`))
		default:
			if r.URL.Query().Get("$skiptoken") != "abc" {
				t.Errorf("next page query = %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"value":[{"appId":"A2","displayName":"Miro","accountEnabled":true}]}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), config.EntraConfig{}, ClientOptions{
		HTTPClient:   server.Client(),
		GraphBaseURL: server.URL + "/v1.0",
		TokenSource:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "graph-token"}),
		Retry:        connectors.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	sps, err := client.ListServicePrincipals(context.Background())
	if err != nil {
		t.Fatalf("ListServicePrincipals() error = %v", err)
	}
	var names []string
	for _, sp := range sps {
		names = append(names, sp.DisplayName)
	}
	if diff := cmp.Diff([]string{"Slack", "Miro"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (one retried)", got)
	}
}
