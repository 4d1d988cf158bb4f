package pgstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type applications struct{ s *Store }

const appColumns = `a.id, a.name, a.category_id, a.subcategory_id, coalesce(c.name, ''), a.owner, a.vendor,
	a.domain, a.logo_url, a.monthly_cost_cents, a.currency, a.billing_cycle, a.seats, a.users,
	a.renewal_date, a.next_payment_date, a.status, a.created_at, a.updated_at`

const appFrom = `applications a LEFT JOIN categories c ON c.id = a.category_id`

var appSortColumns = map[string]string{
	"name":    "lower(a.name)",
	"cost":    "a.monthly_cost_cents",
	"renewal": "a.renewal_date",
	"seats":   "a.seats",
	"updated": "a.updated_at",
}

func scanApplication(row rowScanner) (spend.Application, error) {
	var a spend.Application
	var renewal, nextPayment *time.Time
	err := row.Scan(&a.ID, &a.Name, &a.CategoryID, &a.SubCategoryID, &a.CategoryName, &a.Owner, &a.Vendor,
		&a.Domain, &a.LogoURL, &a.MonthlyCostCents, &a.Currency, &a.BillingCycle, &a.Seats, &a.Users,
		&renewal, &nextPayment, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	a.RenewalDate = datePtr(renewal)
	a.NextPaymentDate = datePtr(nextPayment)
	return a, err
}

func getApplication(ctx context.Context, q querier, id int64) (spend.Application, error) {
	a, err := scanApplication(q.QueryRow(ctx, "SELECT "+appColumns+" FROM "+appFrom+" WHERE a.id = $1", id))
	if err != nil {
		return spend.Application{}, mapErr(err, "application", id)
	}
	return a, nil
}

func (r applications) List(ctx context.Context, params store.ListParams) (store.Page[spend.Application], error) {
	params = params.Normalized()
	lq := &listQuery{}
	if status := params.Filter("status"); status != "" {
		lq.and("a.status = " + lq.arg(status))
	}
	if category := params.Filter("category"); category != "" {
		id, err := strconv.ParseInt(category, 10, 64)
		if err != nil {
			return store.NewPage[spend.Application](nil, 0, params), nil
		}
		lq.and("a.category_id = " + lq.arg(id))
	}
	if owner := params.Filter("owner"); owner != "" {
		lq.and("lower(a.owner) = " + lq.arg(strings.ToLower(owner)))
	}
	lq.search(params.Query, "a.name", "a.vendor", "a.owner", "a.domain", "c.name")
	order := orderBy(params.Sort, params.Desc, appSortColumns, "lower(a.name)", "a.id")
	return fetchPage(ctx, r.s.pool, params, appColumns, appFrom, lq, order, scanApplication)
}

func (r applications) All(ctx context.Context) ([]spend.Application, error) {
	return collect(ctx, r.s.pool, "SELECT "+appColumns+" FROM "+appFrom+" ORDER BY lower(a.name), a.id", scanApplication)
}

func (r applications) Get(ctx context.Context, id int64) (spend.Application, error) {
	return getApplication(ctx, r.s.pool, id)
}

// checkTaxonomy verifies that the referenced category exists and owns the subcategory.
func checkTaxonomy(ctx context.Context, q querier, in spend.ApplicationInput) error {
	if in.CategoryID != nil {
		ok, err := exists(ctx, q, "categories", *in.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return &spend.ValidationError{Fields: map[string]string{"categoryId": "Unknown category."}}
		}
	}
	if in.SubCategoryID != nil {
		var owner int64
		err := q.QueryRow(ctx, "SELECT category_id FROM subcategories WHERE id = $1", *in.SubCategoryID).Scan(&owner)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err != nil || in.CategoryID == nil || owner != *in.CategoryID {
			return &spend.ValidationError{Fields: map[string]string{"subcategoryId": "Subcategory does not belong to the category."}}
		}
	}
	return nil
}

func insertApplication(ctx context.Context, q querier, in spend.ApplicationInput, now time.Time) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO applications (name, category_id, subcategory_id, owner, vendor, domain, logo_url,
			monthly_cost_cents, currency, billing_cycle, seats, users, renewal_date, next_payment_date,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id`,
		in.Name, in.CategoryID, in.SubCategoryID, in.Owner, in.Vendor, in.Domain, in.LogoURL,
		in.MonthlyCostCents, in.Currency, in.BillingCycle, in.Seats, in.Users,
		dateArg(in.RenewalDate), dateArg(in.NextPaymentDate), in.Status, now,
	).Scan(&id)
	return id, mapErr(err, "application", in.Name)
}

func (r applications) Create(ctx context.Context, in spend.ApplicationInput) (spend.Application, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Application{}, err
	}
	if err := checkTaxonomy(ctx, r.s.pool, in); err != nil {
		return spend.Application{}, err
	}
	id, err := insertApplication(ctx, r.s.pool, in, r.s.clock())
	if err != nil {
		return spend.Application{}, err
	}
	return getApplication(ctx, r.s.pool, id)
}

func (r applications) Update(ctx context.Context, id int64, in spend.ApplicationInput) (spend.Application, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Application{}, err
	}
	if err := checkTaxonomy(ctx, r.s.pool, in); err != nil {
		return spend.Application{}, err
	}
	tag, err := r.s.pool.Exec(ctx, `
		UPDATE applications SET name = $2, category_id = $3, subcategory_id = $4, owner = $5, vendor = $6,
			domain = $7, logo_url = $8, monthly_cost_cents = $9, currency = $10, billing_cycle = $11,
			seats = $12, users = $13, renewal_date = $14, next_payment_date = $15, status = $16, updated_at = $17
		WHERE id = $1`,
		id, in.Name, in.CategoryID, in.SubCategoryID, in.Owner, in.Vendor, in.Domain, in.LogoURL,
		in.MonthlyCostCents, in.Currency, in.BillingCycle, in.Seats, in.Users,
		dateArg(in.RenewalDate), dateArg(in.NextPaymentDate), in.Status, r.s.clock())
	if err != nil {
		return spend.Application{}, mapErr(err, "application", id)
	}
	if err := expectRow(tag, "application", id); err != nil {
		return spend.Application{}, err
	}
	return getApplication(ctx, r.s.pool, id)
}

// Delete fails with ErrConflict while contracts reference the application. Discoveries are
// unlinked; users and cost records go with it.
func (r applications) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM applications WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "application", id)
	}
	return expectRow(tag, "application", id)
}

func (r applications) SetStatus(ctx context.Context, id int64, status string) (spend.Application, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != spend.AppStatusActive && status != spend.AppStatusArchived {
		return spend.Application{}, &spend.ValidationError{Fields: map[string]string{"status": "Status must be active or archived."}}
	}
	tag, err := r.s.pool.Exec(ctx, "UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1", id, status, r.s.clock())
	if err != nil {
		return spend.Application{}, err
	}
	if err := expectRow(tag, "application", id); err != nil {
		return spend.Application{}, err
	}
	return getApplication(ctx, r.s.pool, id)
}

func (r applications) AssignOwner(ctx context.Context, id int64, owner string) (spend.Application, error) {
	owner = strings.TrimSpace(owner)
	if len(owner) > 200 {
		return spend.Application{}, &spend.ValidationError{Fields: map[string]string{"owner": "Owner must be at most 200 characters."}}
	}
	tag, err := r.s.pool.Exec(ctx, "UPDATE applications SET owner = $2, updated_at = $3 WHERE id = $1", id, owner, r.s.clock())
	if err != nil {
		return spend.Application{}, err
	}
	if err := expectRow(tag, "application", id); err != nil {
		return spend.Application{}, err
	}
	return getApplication(ctx, r.s.pool, id)
}

func scanUser(row rowScanner) (spend.DiscoveredUser, error) {
	var u spend.DiscoveredUser
	err := row.Scan(&u.Email, &u.DisplayName, &u.LastSeenAt, &u.Source)
	return u, err
}

func listAppUsers(ctx context.Context, q querier, id int64) ([]spend.DiscoveredUser, error) {
	return collect(ctx, q, `
		SELECT email, display_name, last_seen_at, source FROM application_users
		WHERE application_id = $1 ORDER BY email`, scanUser, id)
}

func (r applications) ListUsers(ctx context.Context, id int64) ([]spend.DiscoveredUser, error) {
	ok, err := exists(ctx, r.s.pool, "applications", id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("application", id)
	}
	return listAppUsers(ctx, r.s.pool, id)
}

// replaceUserRows swaps the user rows of one owner through COPY.
func replaceUserRows(ctx context.Context, tx pgx.Tx, table, ownerCol string, ownerID int64, users []spend.DiscoveredUser) error {
	if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE "+ownerCol+" = $1", ownerID); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{table},
		[]string{ownerCol, "email", "display_name", "last_seen_at", "source"},
		pgx.CopyFromSlice(len(users), func(i int) ([]any, error) {
			u := users[i]
			return []any{ownerID, u.Email, u.DisplayName, u.LastSeenAt, u.Source}, nil
		}))
	return err
}

func setAppUsers(ctx context.Context, tx pgx.Tx, id int64, users []spend.DiscoveredUser, now time.Time) error {
	if err := replaceUserRows(ctx, tx, "application_users", "application_id", id, users); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, "UPDATE applications SET users = $2, updated_at = $3 WHERE id = $1", id, len(users), now)
	return err
}

func (r applications) ReplaceUsers(ctx context.Context, id int64, users []spend.DiscoveredUser) error {
	return pgx.BeginFunc(ctx, r.s.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, "SELECT id FROM applications WHERE id = $1 FOR UPDATE", id).Scan(&locked); err != nil {
			return mapErr(err, "application", id)
		}
		return setAppUsers(ctx, tx, id, spend.MergeUsers(nil, users), r.s.clock())
	})
}

// FindByDomainOrName matches the domain first, then the name, both case-insensitively.
func (r applications) FindByDomainOrName(ctx context.Context, domain, name string) (spend.Application, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	name = strings.TrimSpace(name)
	lookups := []struct{ cond, value string }{
		{"lower(a.domain) = $1", domain},
		{"lower(a.name) = lower($1)", name},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		a, err := scanApplication(r.s.pool.QueryRow(ctx,
			"SELECT "+appColumns+" FROM "+appFrom+" WHERE "+l.cond+" ORDER BY lower(a.name), a.id LIMIT 1", l.value))
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return spend.Application{}, err
		}
	}
	return spend.Application{}, store.ErrNotFound
}
