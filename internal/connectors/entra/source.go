package entra

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
)

const (
	defaultLookback = 30 * 24 * time.Hour

	// microsoftTenantID owns Microsoft's first-party apps (Office, Teams, Graph Explorer).
	microsoftTenantID = "f8cdef31-a31e-4b4a-93e4-5f571e91255a"
	integratedAppTag  = "WindowsAzureActiveDirectoryIntegratedApp"
)

type directory interface {
	ListServicePrincipals(ctx context.Context) ([]ServicePrincipal, error)
	ListSignIns(ctx context.Context, since time.Time) ([]SignIn, error)
}

// Source reports every third-party enterprise app with the users who signed in to it
// during the lookback window.
type Source struct {
	dir      directory
	lookback time.Duration
	now      func() time.Time
}

var _ discovery.Source = (*Source)(nil)

func NewSource(client *Client) *Source {
	return newSource(client)
}

func newSource(dir directory) *Source {
	return &Source{dir: dir, lookback: defaultLookback, now: time.Now}
}

func (s *Source) Name() string { return discovery.SourceEntra }

func (s *Source) Collect(ctx context.Context) ([]discovery.Observation, error) {
	now := s.now().UTC()
	sps, err := s.dir.ListServicePrincipals(ctx)
	if err != nil {
		return nil, err
	}
	signIns, err := s.dir.ListSignIns(ctx, now.Add(-s.lookback))
	if err != nil {
		return nil, err
	}
	return buildObservations(sps, signIns, now), nil
}

type appUsage struct {
	sp    ServicePrincipal
	users map[string]*spend.DiscoveredUser
}

// buildObservations keeps enabled third-party apps that are either tagged as integrated
// enterprise apps or were signed in to, ordered by name.
func buildObservations(sps []ServicePrincipal, signIns []SignIn, at time.Time) []discovery.Observation {
	byAppID := map[string]*appUsage{}
	for _, sp := range sps {
		appID := strings.ToLower(strings.TrimSpace(sp.AppID))
		if appID == "" || !sp.AccountEnabled || firstParty(sp) {
			continue
		}
		byAppID[appID] = &appUsage{sp: sp, users: map[string]*spend.DiscoveredUser{}}
	}

	used := map[string]bool{}
	for _, si := range signIns {
		usage, ok := byAppID[strings.ToLower(strings.TrimSpace(si.AppID))]
		if !ok {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(si.UserPrincipalName))
		if email == "" {
			continue
		}
		used[strings.ToLower(usage.sp.AppID)] = true
		seen := si.CreatedDateTime.UTC()
		u, ok := usage.users[email]
		if !ok {
			usage.users[email] = &spend.DiscoveredUser{
				Email:       email,
				DisplayName: strings.TrimSpace(si.UserDisplayName),
				LastSeenAt:  &seen,
				Source:      discovery.SourceEntra,
			}
			continue
		}
		if u.LastSeenAt == nil || seen.After(*u.LastSeenAt) {
			u.LastSeenAt = &seen
		}
	}

	out := make([]discovery.Observation, 0, len(byAppID))
	for appID, usage := range byAppID {
		if !used[appID] && !slices.Contains(usage.sp.Tags, integratedAppTag) {
			continue
		}
		meta := discovery.BuildMetadata(discovery.CanonicalInput{
			SourceKind:       discovery.SourceEntra,
			SourceAppID:      usage.sp.AppID,
			SourceAppName:    usage.sp.DisplayName,
			SourceDomain:     usage.sp.Homepage,
			SourceVendorName: usage.sp.PublisherName,
		})
		users := make([]spend.DiscoveredUser, 0, len(usage.users))
		for _, u := range usage.users {
			users = append(users, *u)
		}
		sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
		out = append(out, discovery.Observation{
			CanonicalKey: meta.CanonicalKey,
			DisplayName:  meta.DisplayName,
			Domain:       meta.Domain,
			VendorName:   meta.VendorName,
			Source:       discovery.SourceEntra,
			ObservedAt:   at,
			Users:        users,
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

func firstParty(sp ServicePrincipal) bool {
	return strings.EqualFold(strings.TrimSpace(sp.AppOwnerOrganizationID), microsoftTenantID)
}
