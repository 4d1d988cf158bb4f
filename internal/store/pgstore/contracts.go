package pgstore

import (
	"context"
	"strconv"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type contracts struct{ s *Store }

const contractColumns = `k.id, k.application_id, coalesce(a.name, ''), k.vendor, k.status, k.start_date,
	k.end_date, k.renewal_date, k.value_cents, k.currency, k.term_months, k.auto_renew, k.notice_days,
	k.notes, k.created_at, k.updated_at`

const contractFrom = `contracts k LEFT JOIN applications a ON a.id = k.application_id`

const effectiveRenewal = "coalesce(k.renewal_date, k.end_date)"

var contractSortColumns = map[string]string{
	"renewal": effectiveRenewal,
	"value":   "k.value_cents",
	"vendor":  "lower(k.vendor)",
	"created": "k.created_at",
}

func scanContract(row rowScanner) (spend.Contract, error) {
	var c spend.Contract
	var start, end time.Time
	var renewal *time.Time
	err := row.Scan(&c.ID, &c.ApplicationID, &c.ApplicationName, &c.Vendor, &c.Status, &start,
		&end, &renewal, &c.ValueCents, &c.Currency, &c.TermMonths, &c.AutoRenew, &c.NoticeDays,
		&c.Notes, &c.CreatedAt, &c.UpdatedAt)
	c.StartDate = spend.DateOf(start)
	c.EndDate = spend.DateOf(end)
	c.RenewalDate = datePtr(renewal)
	return c, err
}

func (r contracts) List(ctx context.Context, params store.ListParams) (store.Page[spend.Contract], error) {
	params = params.Normalized()
	lq := &listQuery{}
	if status := params.Filter("status"); status != "" {
		lq.and("k.status = " + lq.arg(status))
	}
	if app := params.Filter("application"); app != "" {
		id, err := strconv.ParseInt(app, 10, 64)
		if err != nil {
			return store.NewPage[spend.Contract](nil, 0, params), nil
		}
		lq.and("k.application_id = " + lq.arg(id))
	}
	if within := params.Filter("renewing_within"); within != "" {
		days, err := strconv.Atoi(within)
		if err == nil && days >= 0 {
			today := spend.DateOf(r.s.clock())
			lq.and("k.status <> 'cancelled'")
			lq.and(effectiveRenewal + " BETWEEN " + lq.arg(today.Time()) + " AND " + lq.arg(today.AddDays(days).Time()))
		}
	}
	lq.search(params.Query, "k.vendor", "a.name", "k.notes")
	order := orderBy(params.Sort, params.Desc, contractSortColumns, effectiveRenewal, "k.id")
	return fetchPage(ctx, r.s.pool, params, contractColumns, contractFrom, lq, order, scanContract)
}

func (r contracts) All(ctx context.Context) ([]spend.Contract, error) {
	return collect(ctx, r.s.pool, "SELECT "+contractColumns+" FROM "+contractFrom+" ORDER BY "+effectiveRenewal+", k.id", scanContract)
}

func (r contracts) Get(ctx context.Context, id int64) (spend.Contract, error) {
	c, err := scanContract(r.s.pool.QueryRow(ctx, "SELECT "+contractColumns+" FROM "+contractFrom+" WHERE k.id = $1", id))
	if err != nil {
		return spend.Contract{}, mapErr(err, "contract", id)
	}
	return c, nil
}

func (r contracts) requireApplication(ctx context.Context, id int64) error {
	ok, err := exists(ctx, r.s.pool, "applications", id)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("application %d does not exist", id)
	}
	return nil
}

func (r contracts) Create(ctx context.Context, in spend.ContractInput) (spend.Contract, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Contract{}, err
	}
	if err := r.requireApplication(ctx, in.ApplicationID); err != nil {
		return spend.Contract{}, err
	}
	var id int64
	err := r.s.pool.QueryRow(ctx, `
		INSERT INTO contracts (application_id, vendor, status, start_date, end_date, renewal_date,
			value_cents, currency, term_months, auto_renew, notice_days, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id`,
		in.ApplicationID, in.Vendor, in.Status, in.StartDate.Time(), in.EndDate.Time(), dateArg(in.RenewalDate),
		in.ValueCents, in.Currency, in.TermMonths, in.AutoRenew, in.NoticeDays, in.Notes, r.s.clock(),
	).Scan(&id)
	if err != nil {
		return spend.Contract{}, mapErr(err, "contract", in.Vendor)
	}
	return r.Get(ctx, id)
}

func (r contracts) Update(ctx context.Context, id int64, in spend.ContractInput) (spend.Contract, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Contract{}, err
	}
	if ok, err := exists(ctx, r.s.pool, "contracts", id); err != nil {
		return spend.Contract{}, err
	} else if !ok {
		return spend.Contract{}, notFound("contract", id)
	}
	if err := r.requireApplication(ctx, in.ApplicationID); err != nil {
		return spend.Contract{}, err
	}
	_, err := r.s.pool.Exec(ctx, `
		UPDATE contracts SET application_id = $2, vendor = $3, status = $4, start_date = $5, end_date = $6,
			renewal_date = $7, value_cents = $8, currency = $9, term_months = $10, auto_renew = $11,
			notice_days = $12, notes = $13, updated_at = $14
		WHERE id = $1`,
		id, in.ApplicationID, in.Vendor, in.Status, in.StartDate.Time(), in.EndDate.Time(), dateArg(in.RenewalDate),
		in.ValueCents, in.Currency, in.TermMonths, in.AutoRenew, in.NoticeDays, in.Notes, r.s.clock())
	if err != nil {
		return spend.Contract{}, mapErr(err, "contract", id)
	}
	return r.Get(ctx, id)
}

func (r contracts) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM contracts WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "contract", id)
	}
	return expectRow(tag, "contract", id)
}

func (r contracts) ListByApplication(ctx context.Context, applicationID int64) ([]spend.Contract, error) {
	return collect(ctx, r.s.pool,
		"SELECT "+contractColumns+" FROM "+contractFrom+" WHERE k.application_id = $1 ORDER BY "+effectiveRenewal+", k.id",
		scanContract, applicationID)
}

func (r contracts) ListRenewingBetween(ctx context.Context, from, to spend.Date) ([]spend.Contract, error) {
	return collect(ctx, r.s.pool, "SELECT "+contractColumns+" FROM "+contractFrom+`
		WHERE k.status <> 'cancelled' AND `+effectiveRenewal+` BETWEEN $1 AND $2
		ORDER BY `+effectiveRenewal+", k.id",
		scanContract, from.Time(), to.Time())
}
