package memstore

import (
	"context"
	"strconv"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type contracts struct{ s *Store }

func (s *Store) contractView(c spend.Contract) spend.Contract {
	c.RenewalDate = copyDate(c.RenewalDate)
	c.ApplicationName = ""
	if a, ok := s.apps[c.ApplicationID]; ok {
		c.ApplicationName = a.Name
	}
	return c
}

func (r contracts) filtered(params store.ListParams) []spend.Contract {
	s := r.s
	status := params.Filter("status")
	var appID int64
	if raw := params.Filter("application"); raw != "" {
		appID, _ = strconv.ParseInt(raw, 10, 64)
		if appID <= 0 {
			return []spend.Contract{}
		}
	}
	renewingWithin := -1
	if raw := params.Filter("renewing_within"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			renewingWithin = n
		}
	}
	today := spend.DateOf(s.clock())

	out := make([]spend.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		c = s.contractView(c)
		if status != "" && c.Status != status {
			continue
		}
		if appID > 0 && c.ApplicationID != appID {
			continue
		}
		if renewingWithin >= 0 {
			days := spend.DaysToRenewal(c.EffectiveRenewalDate(), today)
			if c.Status == spend.ContractStatusCancelled || days < 0 || days > renewingWithin {
				continue
			}
		}
		if !matchesQuery(params.Query, c.Vendor, c.ApplicationName, c.Notes) {
			continue
		}
		out = append(out, c)
	}

	id := func(c spend.Contract) int64 { return c.ID }
	switch params.Sort {
	case "value":
		sortBy(out, params.Desc, id, func(a, b spend.Contract) int { return compareInts(a.ValueCents, b.ValueCents) })
	case "vendor":
		sortBy(out, params.Desc, id, func(a, b spend.Contract) int { return compareStrings(a.Vendor, b.Vendor) })
	case "created":
		sortBy(out, params.Desc, id, func(a, b spend.Contract) int { return compareTimes(a.CreatedAt, b.CreatedAt) })
	default:
		sortBy(out, params.Desc, id, func(a, b spend.Contract) int {
			ra, rb := a.EffectiveRenewalDate(), b.EffectiveRenewalDate()
			return compareDates(&ra, &rb)
		})
	}
	return out
}

func (r contracts) List(ctx context.Context, params store.ListParams) (store.Page[spend.Contract], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Contract]{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return store.Paginate(r.filtered(params.Normalized()), params), nil
}

func (r contracts) All(ctx context.Context) ([]spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filtered(store.ListParams{}), nil
}

func (r contracts) Get(ctx context.Context, id int64) (spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return spend.Contract{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return spend.Contract{}, notFound("contract", id)
	}
	return r.s.contractView(c), nil
}

func applyContractInput(c *spend.Contract, in spend.ContractInput) {
	c.ApplicationID = in.ApplicationID
	c.Vendor = in.Vendor
	c.Status = in.Status
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.RenewalDate = copyDate(in.RenewalDate)
	c.ValueCents = in.ValueCents
	c.Currency = in.Currency
	c.TermMonths = in.TermMonths
	c.AutoRenew = in.AutoRenew
	c.NoticeDays = in.NoticeDays
	c.Notes = in.Notes
}

func (r contracts) Create(ctx context.Context, in spend.ContractInput) (spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return spend.Contract{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Contract{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[in.ApplicationID]; !ok {
		return spend.Contract{}, conflict("application %d does not exist", in.ApplicationID)
	}
	now := s.clock()
	c := spend.Contract{ID: s.nextID(), CreatedAt: now, UpdatedAt: now}
	applyContractInput(&c, in)
	s.contracts[c.ID] = c
	return s.contractView(c), nil
}

func (r contracts) Update(ctx context.Context, id int64, in spend.ContractInput) (spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return spend.Contract{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Contract{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return spend.Contract{}, notFound("contract", id)
	}
	if _, ok := s.apps[in.ApplicationID]; !ok {
		return spend.Contract{}, conflict("application %d does not exist", in.ApplicationID)
	}
	applyContractInput(&c, in)
	c.UpdatedAt = s.clock()
	s.contracts[id] = c
	return s.contractView(c), nil
}

// Delete drops the contract and its reminders.
func (r contracts) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return notFound("contract", id)
	}
	for k := range s.reminders {
		if k.contractID == id {
			delete(s.reminders, k)
		}
	}
	delete(s.contracts, id)
	return nil
}

func (r contracts) ListByApplication(ctx context.Context, applicationID int64) ([]spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filtered(store.ListParams{}.WithFilter("application", strconv.FormatInt(applicationID, 10))), nil
}

func (r contracts) ListRenewingBetween(ctx context.Context, from, to spend.Date) ([]spend.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]spend.Contract, 0)
	for _, c := range r.filtered(store.ListParams{}) {
		if c.Status == spend.ContractStatusCancelled {
			continue
		}
		renewal := c.EffectiveRenewalDate()
		if renewal.Before(from) || renewal.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
