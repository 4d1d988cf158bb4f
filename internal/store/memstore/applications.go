package memstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type applications struct{ s *Store }

// decorateApp fills read-time fields. Caller holds at least the read lock.
func (s *Store) decorateApp(a spend.Application) spend.Application {
	a.CategoryID = copyID(a.CategoryID)
	a.SubCategoryID = copyID(a.SubCategoryID)
	a.RenewalDate = copyDate(a.RenewalDate)
	a.NextPaymentDate = copyDate(a.NextPaymentDate)
	a.CategoryName = ""
	if a.CategoryID != nil {
		if cat, ok := s.categories[*a.CategoryID]; ok {
			a.CategoryName = cat.Name
		}
	}
	return a
}

func (r applications) filtered(params store.ListParams) []spend.Application {
	s := r.s
	status := params.Filter("status")
	category := params.Filter("category")
	owner := strings.ToLower(params.Filter("owner"))

	out := make([]spend.Application, 0, len(s.apps))
	for _, a := range s.apps {
		a = s.decorateApp(a)
		if status != "" && a.Status != status {
			continue
		}
		if category != "" {
			id, err := strconv.ParseInt(category, 10, 64)
			if err != nil || a.CategoryID == nil || *a.CategoryID != id {
				continue
			}
		}
		if owner != "" && strings.ToLower(a.Owner) != owner {
			continue
		}
		if !matchesQuery(params.Query, a.Name, a.Vendor, a.Owner, a.Domain, a.CategoryName) {
			continue
		}
		out = append(out, a)
	}

	id := func(a spend.Application) int64 { return a.ID }
	switch params.Sort {
	case "cost":
		sortBy(out, params.Desc, id, func(a, b spend.Application) int { return compareInts(a.MonthlyCostCents, b.MonthlyCostCents) })
	case "renewal":
		sortBy(out, params.Desc, id, func(a, b spend.Application) int { return compareDates(a.RenewalDate, b.RenewalDate) })
	case "seats":
		sortBy(out, params.Desc, id, func(a, b spend.Application) int { return compareInts(a.Seats, b.Seats) })
	case "updated":
		sortBy(out, params.Desc, id, func(a, b spend.Application) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) })
	default:
		sortBy(out, params.Desc, id, func(a, b spend.Application) int { return compareStrings(a.Name, b.Name) })
	}
	return out
}

func (r applications) List(ctx context.Context, params store.ListParams) (store.Page[spend.Application], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Application]{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return store.Paginate(r.filtered(params.Normalized()), params), nil
}

func (r applications) All(ctx context.Context) ([]spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filtered(store.ListParams{}), nil
}

func (r applications) Get(ctx context.Context, id int64) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[id]
	if !ok {
		return spend.Application{}, notFound("application", id)
	}
	return r.s.decorateApp(a), nil
}

// checkTaxonomy verifies category references. Caller holds the lock.
func (s *Store) checkTaxonomy(in spend.ApplicationInput) error {
	if in.CategoryID != nil {
		if _, ok := s.categories[*in.CategoryID]; !ok {
			return &spend.ValidationError{Fields: map[string]string{"categoryId": "Unknown category."}}
		}
	}
	if in.SubCategoryID != nil {
		sub, ok := s.subs[*in.SubCategoryID]
		if !ok || in.CategoryID == nil || sub.CategoryID != *in.CategoryID {
			return &spend.ValidationError{Fields: map[string]string{"subcategoryId": "Subcategory does not belong to the category."}}
		}
	}
	return nil
}

func applyAppInput(a *spend.Application, in spend.ApplicationInput) {
	a.Name = in.Name
	a.CategoryID = copyID(in.CategoryID)
	a.SubCategoryID = copyID(in.SubCategoryID)
	a.Owner = in.Owner
	a.Vendor = in.Vendor
	a.Domain = in.Domain
	a.LogoURL = in.LogoURL
	a.MonthlyCostCents = in.MonthlyCostCents
	a.Currency = in.Currency
	a.BillingCycle = in.BillingCycle
	a.Seats = in.Seats
	a.Users = in.Users
	a.RenewalDate = copyDate(in.RenewalDate)
	a.NextPaymentDate = copyDate(in.NextPaymentDate)
	a.Status = in.Status
}

func (r applications) Create(ctx context.Context, in spend.ApplicationInput) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Application{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTaxonomy(in); err != nil {
		return spend.Application{}, err
	}
	now := s.clock()
	a := spend.Application{ID: s.nextID(), CreatedAt: now, UpdatedAt: now}
	applyAppInput(&a, in)
	s.apps[a.ID] = a
	return s.decorateApp(a), nil
}

func (r applications) Update(ctx context.Context, id int64, in spend.ApplicationInput) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Application{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return spend.Application{}, notFound("application", id)
	}
	if err := s.checkTaxonomy(in); err != nil {
		return spend.Application{}, err
	}
	applyAppInput(&a, in)
	a.UpdatedAt = s.clock()
	s.apps[id] = a
	return s.decorateApp(a), nil
}

// Delete refuses while contracts reference the application. Discoveries are unlinked and
// cost records and users go with it.
func (r applications) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return notFound("application", id)
	}
	for _, c := range s.contracts {
		if c.ApplicationID == id {
			return conflict("application %d has contracts", id)
		}
	}
	for did, d := range s.discoveries {
		if d.ApplicationID != nil && *d.ApplicationID == id {
			d.ApplicationID = nil
			s.discoveries[did] = d
		}
	}
	for k := range s.costs {
		if k.applicationID == id {
			delete(s.costs, k)
		}
	}
	delete(s.appUsers, id)
	delete(s.apps, id)
	return nil
}

func (r applications) SetStatus(ctx context.Context, id int64, status string) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != spend.AppStatusActive && status != spend.AppStatusArchived {
		return spend.Application{}, &spend.ValidationError{Fields: map[string]string{"status": "Status must be active or archived."}}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return spend.Application{}, notFound("application", id)
	}
	a.Status = status
	a.UpdatedAt = s.clock()
	s.apps[id] = a
	return s.decorateApp(a), nil
}

func (r applications) AssignOwner(ctx context.Context, id int64, owner string) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	owner = strings.TrimSpace(owner)
	if len(owner) > 200 {
		return spend.Application{}, &spend.ValidationError{Fields: map[string]string{"owner": "Owner must be at most 200 characters."}}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return spend.Application{}, notFound("application", id)
	}
	a.Owner = owner
	a.UpdatedAt = s.clock()
	s.apps[id] = a
	return s.decorateApp(a), nil
}

func (r applications) ListUsers(ctx context.Context, id int64) ([]spend.DiscoveredUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.apps[id]; !ok {
		return nil, notFound("application", id)
	}
	out := copyUsers(s.appUsers[id])
	if out == nil {
		out = []spend.DiscoveredUser{}
	}
	return out, nil
}

// ReplaceUsers stores users and sets the application's user count to match.
func (r applications) ReplaceUsers(ctx context.Context, id int64, users []spend.DiscoveredUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return notFound("application", id)
	}
	merged := spend.MergeUsers(nil, users)
	s.appUsers[id] = copyUsers(merged)
	a.Users = len(merged)
	a.UpdatedAt = s.clock()
	s.apps[id] = a
	return nil
}

// FindByDomainOrName matches the domain first, then the name, both case-insensitively.
func (r applications) FindByDomainOrName(ctx context.Context, domain, name string) (spend.Application, error) {
	if err := ctx.Err(); err != nil {
		return spend.Application{}, err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	name = strings.TrimSpace(name)
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := r.filtered(store.ListParams{})
	if domain != "" {
		for _, a := range all {
			if strings.EqualFold(a.Domain, domain) {
				return a, nil
			}
		}
	}
	if name != "" {
		for _, a := range all {
			if strings.EqualFold(a.Name, name) {
				return a, nil
			}
		}
	}
	return spend.Application{}, store.ErrNotFound
}
