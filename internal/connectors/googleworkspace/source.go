package googleworkspace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
	"golang.org/x/sync/errgroup"
)

type directory interface {
	ListUsers(ctx context.Context, customerID string) ([]User, error)
	ListTokens(ctx context.Context, userKey string) ([]Grant, error)
}

// Source turns OAuth grants into one observation per third-party client.
type Source struct {
	dir        directory
	customerID string
	now        func() time.Time
}

var _ discovery.Source = (*Source)(nil)

func NewSource(client *Client, customerID string) *Source {
	return newSource(client, customerID)
}

func newSource(dir directory, customerID string) *Source {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		customerID = "my_customer"
	}
	return &Source{dir: dir, customerID: customerID, now: time.Now}
}

func (s *Source) Name() string { return discovery.SourceGoogleWorkspace }

func (s *Source) Collect(ctx context.Context) ([]discovery.Observation, error) {
	users, err := s.dir.ListUsers(ctx, s.customerID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	active := make([]User, 0, len(users))
	for _, u := range users {
		if !u.Suspended && strings.TrimSpace(u.PrimaryEmail) != "" {
			active = append(active, u)
		}
	}

	grants := make([][]Grant, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range active {
		g.Go(func() error {
			tokens, err := s.dir.ListTokens(gctx, u.PrimaryEmail)
			if err != nil {
				return fmt.Errorf("list tokens for %s: %w", u.PrimaryEmail, err)
			}
			grants[i] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groupGrants(active, grants, s.now().UTC()), nil
}

type clientGrants struct {
	clientID string
	name     string
	scopes   []string
	users    []spend.DiscoveredUser
	seen     map[string]struct{}
}

// groupGrants folds per-user grants into one observation per OAuth client, ordered by name.
// Anonymous grants carry no client identity and are skipped.
func groupGrants(users []User, grants [][]Grant, at time.Time) []discovery.Observation {
	byClient := map[string]*clientGrants{}
	for i, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.PrimaryEmail))
		for _, grant := range grants[i] {
			clientID := strings.TrimSpace(grant.ClientID)
			if grant.Anonymous || clientID == "" {
				continue
			}
			cg, ok := byClient[clientID]
			if !ok {
				cg = &clientGrants{clientID: clientID, seen: map[string]struct{}{}}
				byClient[clientID] = cg
			}
			if cg.name == "" {
				cg.name = strings.TrimSpace(grant.DisplayText)
			}
			cg.scopes = append(cg.scopes, grant.Scopes...)
			if _, dup := cg.seen[email]; dup {
				continue
			}
			cg.seen[email] = struct{}{}
			cg.users = append(cg.users, spend.DiscoveredUser{
				Email:       email,
				DisplayName: strings.TrimSpace(u.Name.FullName),
				LastSeenAt:  u.LastLogin(),
				Source:      discovery.SourceGoogleWorkspace,
			})
		}
	}

	out := make([]discovery.Observation, 0, len(byClient))
	for _, cg := range byClient {
		meta := discovery.BuildMetadata(discovery.CanonicalInput{
			SourceKind:    discovery.SourceGoogleWorkspace,
			SourceAppID:   cg.clientID,
			SourceAppName: cg.name,
			SourceDomain:  clientDomain(cg.clientID),
		})
		out = append(out, discovery.Observation{
			CanonicalKey: meta.CanonicalKey,
			DisplayName:  meta.DisplayName,
			Domain:       meta.Domain,
			VendorName:   meta.VendorName,
			Source:       discovery.SourceGoogleWorkspace,
			ObservedAt:   at,
			Scopes:       discovery.NormalizeScopes(cg.scopes),
			Users:        cg.users,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].CanonicalKey < out[j].CanonicalKey
	})
	return out
}

// clientDomain recognizes the rare client ids that are hostnames. Numeric Google client ids
// ("1234-abc.apps.googleusercontent.com") say nothing about the vendor.
func clientDomain(clientID string) string {
	clientID = strings.ToLower(strings.TrimSpace(clientID))
	if !strings.Contains(clientID, ".") || strings.HasSuffix(clientID, ".googleusercontent.com") {
		return ""
	}
	return clientID
}
