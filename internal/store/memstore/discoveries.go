package memstore

import (
	"context"
	"strings"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type discoveries struct{ s *Store }

func (s *Store) discoveryView(d spend.Discovery) spend.Discovery {
	d.ApplicationID = copyID(d.ApplicationID)
	d.Users = copyUsers(d.Users)
	d.Scopes = copyStrings(d.Scopes)
	d.UserCount = len(d.Users)
	d.ApplicationName = ""
	if d.ApplicationID != nil {
		if a, ok := s.apps[*d.ApplicationID]; ok {
			d.ApplicationName = a.Name
		}
	}
	return d
}

func (r discoveries) List(ctx context.Context, params store.ListParams) (store.Page[spend.Discovery], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Discovery]{}, err
	}
	params = params.Normalized()
	state := params.Filter("state")
	source := params.Filter("source")
	managed := params.Filter("managed")

	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]spend.Discovery, 0, len(s.discoveries))
	for _, d := range s.discoveries {
		d = s.discoveryView(d)
		if state != "" && d.State != state {
			continue
		}
		if source != "" && d.Source != source {
			continue
		}
		if managed == "1" && !d.Managed() || managed == "0" && d.Managed() {
			continue
		}
		if !matchesQuery(params.Query, d.DisplayName, d.Domain, d.VendorName) {
			continue
		}
		out = append(out, d)
	}

	id := func(d spend.Discovery) int64 { return d.ID }
	switch params.Sort {
	case "name":
		sortBy(out, params.Desc, id, func(a, b spend.Discovery) int { return compareStrings(a.DisplayName, b.DisplayName) })
	case "users":
		sortBy(out, params.Desc, id, func(a, b spend.Discovery) int { return compareInts(a.UserCount, b.UserCount) })
	case "last_seen":
		sortBy(out, params.Desc, id, func(a, b spend.Discovery) int { return compareTimes(a.LastSeenAt, b.LastSeenAt) })
	default:
		sortBy(out, true, id, func(a, b spend.Discovery) int { return compareTimes(a.LastSeenAt, b.LastSeenAt) })
	}
	return store.Paginate(out, params), nil
}

func (r discoveries) Get(ctx context.Context, id int64) (spend.Discovery, error) {
	if err := ctx.Err(); err != nil {
		return spend.Discovery{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.discoveries[id]
	if !ok {
		return spend.Discovery{}, notFound("discovery", id)
	}
	return r.s.discoveryView(d), nil
}

func (r discoveries) Upsert(ctx context.Context, obs spend.DiscoveryObservation) (spend.Discovery, error) {
	if err := ctx.Err(); err != nil {
		return spend.Discovery{}, err
	}
	key := strings.TrimSpace(obs.CanonicalKey)
	if key == "" {
		return spend.Discovery{}, &spend.ValidationError{Fields: map[string]string{"canonicalKey": "Canonical key is required."}}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := obs.ObservedAt.UTC()
	if seen.IsZero() {
		seen = s.clock()
	}

	for id, d := range s.discoveries {
		if d.CanonicalKey != key {
			continue
		}
		if d.DisplayName == "" {
			d.DisplayName = obs.DisplayName
		}
		if d.Domain == "" {
			d.Domain = obs.Domain
		}
		if d.VendorName == "" {
			d.VendorName = obs.VendorName
		}
		if seen.After(d.LastSeenAt) {
			d.LastSeenAt = seen
		}
		d.Scopes = spend.MergeScopes(d.Scopes, obs.Scopes)
		d.Users = spend.MergeUsers(d.Users, obs.Users)
		s.discoveries[id] = d
		return s.discoveryView(d), nil
	}

	source := obs.Source
	if source == "" {
		source = "manual"
	}
	d := spend.Discovery{
		ID:           s.nextID(),
		CanonicalKey: key,
		DisplayName:  obs.DisplayName,
		Domain:       obs.Domain,
		VendorName:   obs.VendorName,
		Source:       source,
		State:        spend.DiscoveryStateNew,
		FirstSeenAt:  seen,
		LastSeenAt:   seen,
		Scopes:       spend.MergeScopes(nil, obs.Scopes),
		Users:        spend.MergeUsers(nil, obs.Users),
	}
	s.discoveries[d.ID] = d
	return s.discoveryView(d), nil
}

// Adopt reuses the linked application when there is one, otherwise creates an application
// from the discovery. Discovered users are merged onto the application either way.
func (r discoveries) Adopt(ctx context.Context, id int64) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discoveries[id]
	if !ok {
		return spend.Application{}, notFound("discovery", id)
	}
	now := s.clock()

	var app spend.Application
	linked := false
	if d.ApplicationID != nil {
		app, linked = s.apps[*d.ApplicationID]
	}
	if !linked {
		in := spend.ApplicationInput{
			Name:   d.DisplayName,
			Vendor: d.VendorName,
			Domain: d.Domain,
			Seats:  len(d.Users),
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return spend.Application{}, err
		}
		app = spend.Application{ID: s.nextID(), CreatedAt: now}
		applyAppInput(&app, in)
	}

	users := spend.MergeUsers(s.appUsers[app.ID], d.Users)
	s.appUsers[app.ID] = users
	app.Users = len(users)
	app.UpdatedAt = now
	s.apps[app.ID] = app

	appID := app.ID
	d.ApplicationID = &appID
	d.State = spend.DiscoveryStateAdopted
	s.discoveries[id] = d
	return s.decorateApp(app), nil
}

func (r discoveries) SetState(ctx context.Context, id int64, state string) (spend.Discovery, error) {
	if err := ctx.Err(); err != nil {
		return spend.Discovery{}, err
	}
	switch state {
	case spend.DiscoveryStateNew, spend.DiscoveryStateAdopted, spend.DiscoveryStateIgnored:
	default:
		return spend.Discovery{}, &spend.ValidationError{Fields: map[string]string{"state": "Unknown discovery state."}}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discoveries[id]
	if !ok {
		return spend.Discovery{}, notFound("discovery", id)
	}
	d.State = state
	s.discoveries[id] = d
	return s.discoveryView(d), nil
}

func (r discoveries) Link(ctx context.Context, id, applicationID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discoveries[id]
	if !ok {
		return notFound("discovery", id)
	}
	if _, ok := s.apps[applicationID]; !ok {
		return notFound("application", applicationID)
	}
	d.ApplicationID = &applicationID
	s.discoveries[id] = d
	return nil
}

func (r discoveries) CountByState(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[string]int64{
		spend.DiscoveryStateNew:     0,
		spend.DiscoveryStateAdopted: 0,
		spend.DiscoveryStateIgnored: 0,
	}
	for _, d := range r.s.discoveries {
		out[d.State]++
	}
	return out, nil
}
