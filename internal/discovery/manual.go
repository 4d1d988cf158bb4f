package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
)

// ManualInput is an observation entered by an operator rather than collected from a source.
type ManualInput struct {
	Name   string                 `json:"name"`
	Domain string                 `json:"domain"`
	Vendor string                 `json:"vendor"`
	Scopes []string               `json:"scopes"`
	Users  []spend.DiscoveredUser `json:"users"`
}

// ManualObservation validates in and turns it into an observation from the manual source.
func ManualObservation(in ManualInput, now time.Time) (Observation, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Domain = strings.TrimSpace(in.Domain)

	fields := map[string]string{}
	if in.Name == "" && in.Domain == "" {
		fields["name"] = "Name or domain is required."
	}
	users := make([]spend.DiscoveredUser, 0, len(in.Users))
	for _, u := range in.Users {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Email != "" && !spend.ValidEmail(u.Email) {
			fields["users"] = "Every user needs a valid email address."
			continue
		}
		u.Source = SourceManual
		users = append(users, u)
	}
	if len(fields) > 0 {
		return Observation{}, &spend.ValidationError{Fields: fields}
	}

	meta := BuildMetadata(CanonicalInput{
		SourceKind:       SourceManual,
		SourceAppName:    in.Name,
		SourceDomain:     in.Domain,
		SourceVendorName: in.Vendor,
	})
	return Observation{
		CanonicalKey: meta.CanonicalKey,
		DisplayName:  meta.DisplayName,
		Domain:       meta.Domain,
		VendorName:   meta.VendorName,
		Source:       SourceManual,
		ObservedAt:   now.UTC(),
		Scopes:       in.Scopes,
		Users:        users,
	}, nil
}

// StaticSource replays a fixed set of observations. Mock mode uses it in place of live sources.
type StaticSource struct {
	SourceName   string
	Observations []Observation
}

func (s StaticSource) Name() string { return s.SourceName }

func (s StaticSource) Collect(ctx context.Context) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Observation, len(s.Observations))
	copy(out, s.Observations)
	return out, nil
}
