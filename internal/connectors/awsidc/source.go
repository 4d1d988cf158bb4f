package awsidc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
)

const (
	applicationName   = "Amazon Web Services"
	applicationDomain = "aws.amazon.com"
	applicationVendor = "Amazon"
)

type directory interface {
	ListUsers(ctx context.Context) ([]User, error)
	ListGrants(ctx context.Context) ([]Grant, error)
}

// Source reports one "Amazon Web Services" observation whose users are the Identity Center
// users holding at least one account assignment. Identity Center keeps no sign-in history,
// so users carry no last-seen time.
type Source struct {
	dir directory
	now func() time.Time
}

var _ discovery.Source = (*Source)(nil)

func NewSource(client *Client) *Source {
	return &Source{dir: client, now: time.Now}
}

func (s *Source) Name() string { return discovery.SourceAWSIdentityCenter }

func (s *Source) Collect(ctx context.Context) ([]discovery.Observation, error) {
	users, err := s.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	grants, err := s.dir.ListGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list account assignments: %w", err)
	}
	entitled := make(map[string]bool, len(grants))
	for _, g := range grants {
		entitled[g.UserID] = true
	}

	meta := discovery.BuildMetadata(discovery.CanonicalInput{
		SourceKind:       discovery.SourceAWSIdentityCenter,
		SourceAppName:    applicationName,
		SourceDomain:     applicationDomain,
		SourceVendorName: applicationVendor,
	})
	obs := discovery.Observation{
		CanonicalKey: meta.CanonicalKey,
		DisplayName:  meta.DisplayName,
		Domain:       meta.Domain,
		VendorName:   meta.VendorName,
		Source:       discovery.SourceAWSIdentityCenter,
		ObservedAt:   s.now().UTC(),
		Scopes:       permissionSetNames(grants),
		Users:        []spend.DiscoveredUser{},
	}
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || !entitled[u.ID] {
			continue
		}
		obs.Users = append(obs.Users, spend.DiscoveredUser{
			Email:       email,
			DisplayName: u.DisplayName,
			Source:      discovery.SourceAWSIdentityCenter,
		})
	}
	return []discovery.Observation{obs}, nil
}

// permissionSetNames doubles as the observation's scopes so admin access surfaces in risk.
func permissionSetNames(grants []Grant) []string {
	seen := map[string]struct{}{}
	for _, g := range grants {
		if name := strings.TrimSpace(g.PermissionSet); name != "" {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
