package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type clients struct{ s *Store }

func (s *Store) clientEmailTaken(email string, except int64) bool {
	for _, c := range s.clients {
		if c.ID != except && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

func (r clients) List(ctx context.Context, params store.ListParams) (store.Page[spend.Client], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Client]{}, err
	}
	params = params.Normalized()
	active := params.Filter("active")
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]spend.Client, 0, len(r.s.clients))
	for _, c := range r.s.clients {
		if active == "1" && !c.Active || active == "0" && c.Active {
			continue
		}
		if !matchesQuery(params.Query, c.Name, c.Email, c.Company) {
			continue
		}
		out = append(out, c)
	}
	id := func(c spend.Client) int64 { return c.ID }
	switch params.Sort {
	case "company":
		sortBy(out, params.Desc, id, func(a, b spend.Client) int { return compareStrings(a.Company, b.Company) })
	case "created":
		sortBy(out, params.Desc, id, func(a, b spend.Client) int { return compareTimes(a.CreatedAt, b.CreatedAt) })
	default:
		sortBy(out, params.Desc, id, func(a, b spend.Client) int { return compareStrings(a.Name, b.Name) })
	}
	return store.Paginate(out, params), nil
}

func (r clients) Get(ctx context.Context, id int64) (spend.Client, error) {
	if err := ctx.Err(); err != nil {
		return spend.Client{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return spend.Client{}, notFound("client", id)
	}
	return c, nil
}

func (r clients) Create(ctx context.Context, in spend.ClientInput) (spend.Client, error) {
	if err := ctx.Err(); err != nil {
		return spend.Client{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Client{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientEmailTaken(in.Email, 0) {
		return spend.Client{}, conflict("client email %q exists", in.Email)
	}
	now := s.clock()
	c := spend.Client{
		ID:          s.nextID(),
		Name:        in.Name,
		Email:       in.Email,
		Company:     in.Company,
		Phone:       in.Phone,
		Address:     in.Address,
		Description: in.Description,
		Active:      in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.clients[c.ID] = c
	return c, nil
}

func (r clients) Update(ctx context.Context, id int64, in spend.ClientInput) (spend.Client, error) {
	if err := ctx.Err(); err != nil {
		return spend.Client{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Client{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return spend.Client{}, notFound("client", id)
	}
	if s.clientEmailTaken(in.Email, id) {
		return spend.Client{}, conflict("client email %q exists", in.Email)
	}
	c.Name = in.Name
	c.Email = in.Email
	c.Company = in.Company
	c.Phone = in.Phone
	c.Address = in.Address
	c.Description = in.Description
	c.Active = in.Active
	c.UpdatedAt = s.clock()
	s.clients[id] = c
	return c, nil
}

func (r clients) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[id]; !ok {
		return notFound("client", id)
	}
	delete(r.s.clients, id)
	return nil
}

type leads struct{ s *Store }

func (s *Store) leadEmailTaken(email string, except int64) bool {
	if email == "" {
		return false
	}
	for _, l := range s.leads {
		if l.ID != except && strings.EqualFold(l.Email, email) {
			return true
		}
	}
	return false
}

func (r leads) List(ctx context.Context, params store.ListParams) (store.Page[spend.Lead], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Lead]{}, err
	}
	params = params.Normalized()
	status := params.Filter("status")
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]spend.Lead, 0, len(r.s.leads))
	for _, l := range r.s.leads {
		if status != "" && l.Status != status {
			continue
		}
		if !matchesQuery(params.Query, l.Name, l.Email, l.Company) {
			continue
		}
		out = append(out, l)
	}
	id := func(l spend.Lead) int64 { return l.ID }
	switch params.Sort {
	case "company":
		sortBy(out, params.Desc, id, func(a, b spend.Lead) int { return compareStrings(a.Company, b.Company) })
	case "created":
		sortBy(out, params.Desc, id, func(a, b spend.Lead) int { return compareTimes(a.CreatedAt, b.CreatedAt) })
	default:
		sortBy(out, params.Desc, id, func(a, b spend.Lead) int { return compareStrings(a.Name, b.Name) })
	}
	return store.Paginate(out, params), nil
}

func (r leads) Get(ctx context.Context, id int64) (spend.Lead, error) {
	if err := ctx.Err(); err != nil {
		return spend.Lead{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.leads[id]
	if !ok {
		return spend.Lead{}, notFound("lead", id)
	}
	return l, nil
}

func (r leads) Create(ctx context.Context, in spend.LeadInput) (spend.Lead, error) {
	if err := ctx.Err(); err != nil {
		return spend.Lead{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Lead{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leadEmailTaken(in.Email, 0) {
		return spend.Lead{}, conflict("lead email %q exists", in.Email)
	}
	l := spend.Lead{
		ID:        s.nextID(),
		Name:      in.Name,
		Email:     in.Email,
		Company:   in.Company,
		Source:    in.Source,
		Status:    in.Status,
		Notes:     in.Notes,
		CreatedAt: s.clock(),
	}
	s.leads[l.ID] = l
	return l, nil
}

func (r leads) Update(ctx context.Context, id int64, in spend.LeadInput) (spend.Lead, error) {
	if err := ctx.Err(); err != nil {
		return spend.Lead{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Lead{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return spend.Lead{}, notFound("lead", id)
	}
	if s.leadEmailTaken(in.Email, id) {
		return spend.Lead{}, conflict("lead email %q exists", in.Email)
	}
	l.Name = in.Name
	l.Email = in.Email
	l.Company = in.Company
	l.Source = in.Source
	l.Status = in.Status
	l.Notes = in.Notes
	s.leads[id] = l
	return l, nil
}

func (r leads) SetStatus(ctx context.Context, id int64, status string) (spend.Lead, error) {
	if err := ctx.Err(); err != nil {
		return spend.Lead{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !spend.ValidLeadStatus(status) {
		return spend.Lead{}, &spend.ValidationError{Fields: map[string]string{"status": "Unknown lead status."}}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return spend.Lead{}, notFound("lead", id)
	}
	l.Status = status
	s.leads[id] = l
	return l, nil
}

func (r leads) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[id]; !ok {
		return notFound("lead", id)
	}
	delete(r.s.leads, id)
	return nil
}

type costs struct{ s *Store }

func (r costs) Upsert(ctx context.Context, rec spend.CostRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Month.IsZero() {
		return &spend.ValidationError{Fields: map[string]string{"month": "Month is required."}}
	}
	rec.Month = rec.Month.MonthStart()
	if rec.Currency == "" {
		rec.Currency = spend.DefaultCurrency
	}
	if rec.Source == "" {
		rec.Source = spend.CostSourceManual
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[rec.ApplicationID]; !ok {
		return conflict("application %d does not exist", rec.ApplicationID)
	}
	s.costs[costKey{rec.ApplicationID, rec.Month.String(), rec.Source}] = rec
	return nil
}

func (r costs) ListSince(ctx context.Context, month spend.Date) ([]spend.CostRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := month.MonthStart()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]spend.CostRecord, 0, len(r.s.costs))
	for _, rec := range r.s.costs {
		if rec.Month.Before(from) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		if out[i].ApplicationID != out[j].ApplicationID {
			return out[i].ApplicationID < out[j].ApplicationID
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

type reminders struct{ s *Store }

func (r reminders) Record(ctx context.Context, contractID int64, renewalDate spend.Date) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[contractID]; !ok {
		return false, notFound("contract", contractID)
	}
	key := reminderKey{contractID, renewalDate.String()}
	if _, exists := s.reminders[key]; exists {
		return false, nil
	}
	s.reminders[key] = spend.RenewalReminder{ContractID: contractID, RenewalDate: renewalDate, CreatedAt: s.clock()}
	return true, nil
}

func (r reminders) ListRecent(ctx context.Context, limit int) ([]spend.RenewalReminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := valuesOf(r.s.reminders)
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ContractID < out[j].ContractID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(ctx context.Context) (spend.Settings, error) {
	if err := ctx.Err(); err != nil {
		return spend.Settings{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.settings, nil
}

func (r settingsRepo) Update(ctx context.Context, in spend.SettingsInput) (spend.Settings, error) {
	if err := ctx.Err(); err != nil {
		return spend.Settings{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Settings{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings = spend.Settings{
		OrgName:              in.OrgName,
		Currency:             in.Currency,
		RenewalWindowDays:    in.RenewalWindowDays,
		FiscalYearStartMonth: in.FiscalYearStartMonth,
		UpdatedAt:            r.s.clock(),
	}
	return r.s.settings, nil
}

type users struct{ s *Store }

func copyAuthUser(u spend.AuthUser) spend.AuthUser {
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

func (r users) List(ctx context.Context) ([]spend.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]spend.AuthUser, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, copyAuthUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r users) Get(ctx context.Context, id int64) (spend.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return spend.AuthUser{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return spend.AuthUser{}, notFound("user", id)
	}
	return copyAuthUser(u), nil
}

func (r users) GetByEmail(ctx context.Context, email string) (spend.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return spend.AuthUser{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return copyAuthUser(u), nil
		}
	}
	return spend.AuthUser{}, store.ErrNotFound
}

func (r users) Create(ctx context.Context, params store.CreateUserParams) (spend.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return spend.AuthUser{}, err
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return spend.AuthUser{}, conflict("user %q exists", email)
		}
	}
	u := spend.AuthUser{
		ID:           s.nextID(),
		Email:        email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		IsActive:     params.IsActive,
		CreatedAt:    s.clock(),
	}
	s.users[u.ID] = u
	return copyAuthUser(u), nil
}

func (r users) update(ctx context.Context, id int64, fn func(*spend.AuthUser)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("user", id)
	}
	fn(&u)
	r.s.users[id] = u
	return nil
}

func (r users) UpdateRole(ctx context.Context, id int64, role string) error {
	return r.update(ctx, id, func(u *spend.AuthUser) { u.Role = role })
}

func (r users) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, func(u *spend.AuthUser) { u.PasswordHash = hash })
}

func (r users) UpdateLoginMeta(ctx context.Context, id int64, at time.Time, ip string) error {
	return r.update(ctx, id, func(u *spend.AuthUser) {
		at = at.UTC()
		u.LastLoginAt = &at
		u.LastLoginIP = ip
	})
}

func (r users) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return notFound("user", id)
	}
	delete(r.s.users, id)
	return nil
}

func (r users) CountUsers(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.users)), nil
}

func (r users) CountActiveAdmins(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, u := range r.s.users {
		if u.IsActive && u.Role == "admin" {
			n++
		}
	}
	return n, nil
}
