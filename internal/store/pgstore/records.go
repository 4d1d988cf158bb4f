package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type clients struct{ s *Store }

const clientColumns = "id, name, email, company, phone, address, description, active, created_at, updated_at"

func scanClient(row rowScanner) (spend.Client, error) {
	var c spend.Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Phone, &c.Address, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r clients) List(ctx context.Context, params store.ListParams) (store.Page[spend.Client], error) {
	params = params.Normalized()
	lq := &listQuery{}
	switch params.Filter("active") {
	case "1":
		lq.and("active")
	case "0":
		lq.and("NOT active")
	}
	lq.search(params.Query, "name", "email", "company")
	order := orderBy(params.Sort, params.Desc, map[string]string{
		"name":    "lower(name)",
		"company": "lower(company)",
		"created": "created_at",
	}, "lower(name)", "id")
	return fetchPage(ctx, r.s.pool, params, clientColumns, "clients", lq, order, scanClient)
}

func (r clients) Get(ctx context.Context, id int64) (spend.Client, error) {
	c, err := scanClient(r.s.pool.QueryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
	return c, mapErr(err, "client", id)
}

func (r clients) Create(ctx context.Context, in spend.ClientInput) (spend.Client, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Client{}, err
	}
	c, err := scanClient(r.s.pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, company, phone, address, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+clientColumns,
		in.Name, in.Email, in.Company, in.Phone, in.Address, in.Description, in.Active, r.s.clock()))
	return c, mapErr(err, "client email", in.Email)
}

func (r clients) Update(ctx context.Context, id int64, in spend.ClientInput) (spend.Client, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Client{}, err
	}
	c, err := scanClient(r.s.pool.QueryRow(ctx, `
		UPDATE clients SET name = $2, email = $3, company = $4, phone = $5, address = $6, description = $7,
			active = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+clientColumns,
		id, in.Name, in.Email, in.Company, in.Phone, in.Address, in.Description, in.Active, r.s.clock()))
	if errors.Is(err, pgx.ErrNoRows) {
		return spend.Client{}, notFound("client", id)
	}
	return c, mapErr(err, "client email", in.Email)
}

func (r clients) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(tag, "client", id)
}

type leads struct{ s *Store }

const leadColumns = "id, name, email, company, source, status, notes, created_at"

func scanLead(row rowScanner) (spend.Lead, error) {
	var l spend.Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Source, &l.Status, &l.Notes, &l.CreatedAt)
	return l, err
}

func (r leads) List(ctx context.Context, params store.ListParams) (store.Page[spend.Lead], error) {
	params = params.Normalized()
	lq := &listQuery{}
	if status := params.Filter("status"); status != "" {
		lq.and("status = " + lq.arg(status))
	}
	lq.search(params.Query, "name", "email", "company")
	order := orderBy(params.Sort, params.Desc, map[string]string{
		"name":    "lower(name)",
		"company": "lower(company)",
		"created": "created_at",
	}, "lower(name)", "id")
	return fetchPage(ctx, r.s.pool, params, leadColumns, "leads", lq, order, scanLead)
}

func (r leads) Get(ctx context.Context, id int64) (spend.Lead, error) {
	l, err := scanLead(r.s.pool.QueryRow(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = $1", id))
	return l, mapErr(err, "lead", id)
}

func (r leads) Create(ctx context.Context, in spend.LeadInput) (spend.Lead, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Lead{}, err
	}
	l, err := scanLead(r.s.pool.QueryRow(ctx, `
		INSERT INTO leads (name, email, company, source, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		in.Name, in.Email, in.Company, in.Source, in.Status, in.Notes, r.s.clock()))
	return l, mapErr(err, "lead email", in.Email)
}

func (r leads) Update(ctx context.Context, id int64, in spend.LeadInput) (spend.Lead, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Lead{}, err
	}
	l, err := scanLead(r.s.pool.QueryRow(ctx, `
		UPDATE leads SET name = $2, email = $3, company = $4, source = $5, status = $6, notes = $7
		WHERE id = $1
		RETURNING `+leadColumns,
		id, in.Name, in.Email, in.Company, in.Source, in.Status, in.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return spend.Lead{}, notFound("lead", id)
	}
	return l, mapErr(err, "lead email", in.Email)
}

func (r leads) SetStatus(ctx context.Context, id int64, status string) (spend.Lead, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !spend.ValidLeadStatus(status) {
		return spend.Lead{}, &spend.ValidationError{Fields: map[string]string{"status": "Unknown lead status."}}
	}
	l, err := scanLead(r.s.pool.QueryRow(ctx, "UPDATE leads SET status = $2 WHERE id = $1 RETURNING "+leadColumns, id, status))
	return l, mapErr(err, "lead", id)
}

func (r leads) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM leads WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(tag, "lead", id)
}

type costs struct{ s *Store }

func (r costs) Upsert(ctx context.Context, rec spend.CostRecord) error {
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
	ok, err := exists(ctx, r.s.pool, "applications", rec.ApplicationID)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("application %d does not exist", rec.ApplicationID)
	}
	_, err = r.s.pool.Exec(ctx, `
		INSERT INTO cost_records (application_id, month, amount_cents, currency, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (application_id, month, source) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents, currency = EXCLUDED.currency`,
		rec.ApplicationID, rec.Month.Time(), rec.AmountCents, rec.Currency, rec.Source)
	return mapErr(err, "cost record", rec.ApplicationID)
}

func (r costs) ListSince(ctx context.Context, month spend.Date) ([]spend.CostRecord, error) {
	return collect(ctx, r.s.pool, `
		SELECT application_id, month, amount_cents, currency, source FROM cost_records
		WHERE month >= $1 ORDER BY month, application_id, source`,
		func(row rowScanner) (spend.CostRecord, error) {
			var rec spend.CostRecord
			var m time.Time
			err := row.Scan(&rec.ApplicationID, &m, &rec.AmountCents, &rec.Currency, &rec.Source)
			rec.Month = spend.DateOf(m)
			return rec, err
		}, month.MonthStart().Time())
}

type reminders struct{ s *Store }

func (r reminders) Record(ctx context.Context, contractID int64, renewalDate spend.Date) (bool, error) {
	ok, err := exists(ctx, r.s.pool, "contracts", contractID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, notFound("contract", contractID)
	}
	tag, err := r.s.pool.Exec(ctx, `
		INSERT INTO renewal_reminders (contract_id, renewal_date, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (contract_id, renewal_date) DO NOTHING`,
		contractID, renewalDate.Time(), r.s.clock())
	if err != nil {
		return false, mapErr(err, "reminder", contractID)
	}
	return tag.RowsAffected() == 1, nil
}

func (r reminders) ListRecent(ctx context.Context, limit int) ([]spend.RenewalReminder, error) {
	if limit <= 0 {
		limit = 1000
	}
	return collect(ctx, r.s.pool, `
		SELECT contract_id, renewal_date, created_at FROM renewal_reminders
		ORDER BY created_at DESC, contract_id LIMIT $1`,
		func(row rowScanner) (spend.RenewalReminder, error) {
			var rem spend.RenewalReminder
			var d time.Time
			err := row.Scan(&rem.ContractID, &d, &rem.CreatedAt)
			rem.RenewalDate = spend.DateOf(d)
			return rem, err
		}, limit)
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(ctx context.Context) (spend.Settings, error) {
	var st spend.Settings
	err := r.s.pool.QueryRow(ctx, `
		SELECT org_name, currency, renewal_window_days, fiscal_year_start_month, updated_at
		FROM settings WHERE id = 1`).Scan(&st.OrgName, &st.Currency, &st.RenewalWindowDays, &st.FiscalYearStartMonth, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return spend.DefaultSettings(), nil
	}
	return st, err
}

func (r settingsRepo) Update(ctx context.Context, in spend.SettingsInput) (spend.Settings, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Settings{}, err
	}
	now := r.s.clock()
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO settings (id, org_name, currency, renewal_window_days, fiscal_year_start_month, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET org_name = EXCLUDED.org_name, currency = EXCLUDED.currency,
			renewal_window_days = EXCLUDED.renewal_window_days,
			fiscal_year_start_month = EXCLUDED.fiscal_year_start_month, updated_at = EXCLUDED.updated_at`,
		in.OrgName, in.Currency, in.RenewalWindowDays, in.FiscalYearStartMonth, now)
	if err != nil {
		return spend.Settings{}, err
	}
	return spend.Settings{
		OrgName:              in.OrgName,
		Currency:             in.Currency,
		RenewalWindowDays:    in.RenewalWindowDays,
		FiscalYearStartMonth: in.FiscalYearStartMonth,
		UpdatedAt:            now,
	}, nil
}

type users struct{ s *Store }

const userColumns = "id, email, password_hash, role, is_active, last_login_at, last_login_ip, created_at"

func scanAuthUser(row rowScanner) (spend.AuthUser, error) {
	var u spend.AuthUser
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.LastLoginAt, &u.LastLoginIP, &u.CreatedAt)
	return u, err
}

func (r users) List(ctx context.Context) ([]spend.AuthUser, error) {
	return collect(ctx, r.s.pool, "SELECT "+userColumns+" FROM auth_users ORDER BY email", scanAuthUser)
}

func (r users) Get(ctx context.Context, id int64) (spend.AuthUser, error) {
	u, err := scanAuthUser(r.s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM auth_users WHERE id = $1", id))
	return u, mapErr(err, "user", id)
}

func (r users) GetByEmail(ctx context.Context, email string) (spend.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanAuthUser(r.s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM auth_users WHERE email = $1", email))
	return u, mapErr(err, "user", email)
}

func (r users) Create(ctx context.Context, params store.CreateUserParams) (spend.AuthUser, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	u, err := scanAuthUser(r.s.pool.QueryRow(ctx, `
		INSERT INTO auth_users (email, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		email, params.PasswordHash, params.Role, params.IsActive, r.s.clock()))
	return u, mapErr(err, "user", email)
}

func (r users) exec(ctx context.Context, id int64, sql string, args ...any) error {
	tag, err := r.s.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	return expectRow(tag, "user", id)
}

func (r users) UpdateRole(ctx context.Context, id int64, role string) error {
	return r.exec(ctx, id, "UPDATE auth_users SET role = $2 WHERE id = $1", role)
}

func (r users) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, id, "UPDATE auth_users SET password_hash = $2 WHERE id = $1", hash)
}

func (r users) UpdateLoginMeta(ctx context.Context, id int64, at time.Time, ip string) error {
	return r.exec(ctx, id, "UPDATE auth_users SET last_login_at = $2, last_login_ip = $3 WHERE id = $1", at.UTC(), ip)
}

func (r users) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, id, "DELETE FROM auth_users WHERE id = $1")
}

func (r users) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.pool.QueryRow(ctx, "SELECT count(*) FROM auth_users").Scan(&n)
	return n, err
}

func (r users) CountActiveAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.pool.QueryRow(ctx, "SELECT count(*) FROM auth_users WHERE role = 'admin' AND is_active").Scan(&n)
	return n, err
}
