package okta

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
	"golang.org/x/sync/errgroup"
)

type directory interface {
	ListApps(ctx context.Context) ([]App, error)
	ListApplicationUsers(ctx context.Context, appID string) ([]Assignment, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Source reports every active Okta app together with the users assigned to it.
type Source struct {
	dir     directory
	orgName string
	now     func() time.Time
}

var _ discovery.Source = (*Source)(nil)

// NewSource builds a discovery source for the org at domain.
func NewSource(domain, token string) (*Source, error) {
	client, err := New(domain, token)
	if err != nil {
		return nil, err
	}
	return newSource(client, domain), nil
}

func newSource(dir directory, domain string) *Source {
	return &Source{dir: dir, orgName: orgName(domain), now: time.Now}
}

func (s *Source) Name() string { return discovery.SourceOkta }

func (s *Source) Collect(ctx context.Context) ([]discovery.Observation, error) {
	apps, err := s.dir.ListApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	users, err := s.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	active := make([]App, 0, len(apps))
	for _, app := range apps {
		if strings.EqualFold(app.Status, "ACTIVE") && !isOktaInternal(app) {
			active = append(active, app)
		}
	}

	assignments := make([][]Assignment, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, app := range active {
		g.Go(func() error {
			a, err := s.dir.ListApplicationUsers(gctx, app.ID)
			if err != nil {
				return fmt.Errorf("list users of app %s: %w", app.ID, err)
			}
			assignments[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	observedAt := s.now().UTC()
	out := make([]discovery.Observation, 0, len(active))
	for i, app := range active {
		out = append(out, s.observation(app, assignments[i], byID, observedAt))
	}
	return out, nil
}

func (s *Source) observation(app App, assigned []Assignment, users map[string]User, at time.Time) discovery.Observation {
	meta := discovery.BuildMetadata(discovery.CanonicalInput{
		SourceKind:    discovery.SourceOkta,
		SourceName:    s.orgName,
		SourceAppID:   app.ID,
		SourceAppName: firstNonEmpty(app.Label, app.Name),
		SourceDomain:  appDomain(app.URLs),
	})
	obs := discovery.Observation{
		CanonicalKey: meta.CanonicalKey,
		DisplayName:  meta.DisplayName,
		Domain:       meta.Domain,
		VendorName:   meta.VendorName,
		Source:       discovery.SourceOkta,
		ObservedAt:   at,
		Users:        make([]spend.DiscoveredUser, 0, len(assigned)),
	}
	for _, a := range assigned {
		u, known := users[a.UserID]
		email := a.Email
		if known && u.Email != "" {
			email = strings.ToLower(strings.TrimSpace(u.Email))
		}
		if email == "" {
			continue
		}
		du := spend.DiscoveredUser{Email: email, Source: discovery.SourceOkta}
		if known {
			du.DisplayName = u.DisplayName
			du.LastSeenAt = u.LastLoginAt
		}
		obs.Users = append(obs.Users, du)
	}
	return obs
}

// appDomain returns the first configured URL that points outside Okta itself.
func appDomain(urls []string) string {
	for _, raw := range urls {
		domain := discovery.NormalizeDomain(raw)
		if domain == "" || isOktaDomain(domain) {
			continue
		}
		return domain
	}
	return ""
}

func isOktaDomain(domain string) bool {
	for _, suffix := range []string{"okta.com", "oktapreview.com", "okta-emea.com"} {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return true
		}
	}
	return false
}

// isOktaInternal skips the dashboard and admin console apps every org carries.
func isOktaInternal(app App) bool {
	switch strings.ToLower(app.Name) {
	case "saasure", "okta_enduser", "okta_browser_plugin", "okta_flow_sso":
		return true
	}
	return false
}

func orgName(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	if i := strings.IndexAny(domain, "./"); i > 0 {
		domain = domain[:i]
	}
	return strings.ToLower(domain)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
