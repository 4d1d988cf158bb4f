package pgstore

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type discoveries struct{ s *Store }

const discoveryColumns = `d.id, d.canonical_key, d.display_name, d.domain, d.vendor_name, d.source, d.state,
	d.application_id, d.scopes, d.first_seen_at, d.last_seen_at,
	(SELECT count(*) FROM discovery_users u WHERE u.discovery_id = d.id), coalesce(a.name, '')`

const discoveryFrom = `discoveries d LEFT JOIN applications a ON a.id = d.application_id`

var discoverySortColumns = map[string]string{
	"name":      "lower(d.display_name)",
	"users":     "(SELECT count(*) FROM discovery_users u WHERE u.discovery_id = d.id)",
	"last_seen": "d.last_seen_at",
}

func scanDiscovery(row rowScanner) (spend.Discovery, error) {
	var d spend.Discovery
	err := row.Scan(&d.ID, &d.CanonicalKey, &d.DisplayName, &d.Domain, &d.VendorName, &d.Source, &d.State,
		&d.ApplicationID, &d.Scopes, &d.FirstSeenAt, &d.LastSeenAt, &d.UserCount, &d.ApplicationName)
	if len(d.Scopes) == 0 {
		d.Scopes = nil
	}
	return d, err
}

// attachUsers loads the users of every discovery in one query.
func attachUsers(ctx context.Context, q querier, items []spend.Discovery) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	for i, d := range items {
		ids[i] = d.ID
	}
	rows, err := q.Query(ctx, `
		SELECT discovery_id, email, display_name, last_seen_at, source FROM discovery_users
		WHERE discovery_id = ANY($1) ORDER BY discovery_id, email`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	byID := map[int64][]spend.DiscoveredUser{}
	for rows.Next() {
		var id int64
		var u spend.DiscoveredUser
		if err := rows.Scan(&id, &u.Email, &u.DisplayName, &u.LastSeenAt, &u.Source); err != nil {
			return err
		}
		byID[id] = append(byID[id], u)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range items {
		items[i].Users = byID[items[i].ID]
	}
	return nil
}

func getDiscovery(ctx context.Context, q querier, id int64) (spend.Discovery, error) {
	d, err := scanDiscovery(q.QueryRow(ctx, "SELECT "+discoveryColumns+" FROM "+discoveryFrom+" WHERE d.id = $1", id))
	if err != nil {
		return spend.Discovery{}, mapErr(err, "discovery", id)
	}
	one := []spend.Discovery{d}
	if err := attachUsers(ctx, q, one); err != nil {
		return spend.Discovery{}, err
	}
	return one[0], nil
}

func (r discoveries) List(ctx context.Context, params store.ListParams) (store.Page[spend.Discovery], error) {
	params = params.Normalized()
	lq := &listQuery{}
	if state := params.Filter("state"); state != "" {
		lq.and("d.state = " + lq.arg(state))
	}
	if source := params.Filter("source"); source != "" {
		lq.and("d.source = " + lq.arg(source))
	}
	switch params.Filter("managed") {
	case "1":
		lq.and("d.application_id IS NOT NULL")
	case "0":
		lq.and("d.application_id IS NULL")
	}
	lq.search(params.Query, "d.display_name", "d.domain", "d.vendor_name")

	sortKey, desc := params.Sort, params.Desc
	if _, ok := discoverySortColumns[sortKey]; !ok {
		sortKey, desc = "last_seen", true
	}
	order := orderBy(sortKey, desc, discoverySortColumns, "d.last_seen_at", "d.id")
	page, err := fetchPage(ctx, r.s.pool, params, discoveryColumns, discoveryFrom, lq, order, scanDiscovery)
	if err != nil {
		return page, err
	}
	return page, attachUsers(ctx, r.s.pool, page.Content)
}

func (r discoveries) Get(ctx context.Context, id int64) (spend.Discovery, error) {
	return getDiscovery(ctx, r.s.pool, id)
}

func listDiscoveryUsers(ctx context.Context, q querier, id int64) ([]spend.DiscoveredUser, error) {
	return collect(ctx, q, `
		SELECT email, display_name, last_seen_at, source FROM discovery_users
		WHERE discovery_id = $1 ORDER BY email`, scanUser, id)
}

func (r discoveries) Upsert(ctx context.Context, obs spend.DiscoveryObservation) (spend.Discovery, error) {
	key := strings.TrimSpace(obs.CanonicalKey)
	if key == "" {
		return spend.Discovery{}, &spend.ValidationError{Fields: map[string]string{"canonicalKey": "Canonical key is required."}}
	}
	seen := obs.ObservedAt.UTC()
	if seen.IsZero() {
		seen = r.s.clock()
	}
	source := obs.Source
	if source == "" {
		source = "manual"
	}

	var out spend.Discovery
	err := pgx.BeginFunc(ctx, r.s.pool, func(tx pgx.Tx) error {
		var id int64
		var scopes []string
		err := tx.QueryRow(ctx, `
			INSERT INTO discoveries (canonical_key, display_name, domain, vendor_name, source, state, scopes,
				first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, 'new', '{}', $6, $6)
			ON CONFLICT (canonical_key) DO UPDATE SET
				display_name = CASE WHEN discoveries.display_name = '' THEN EXCLUDED.display_name ELSE discoveries.display_name END,
				domain = CASE WHEN discoveries.domain = '' THEN EXCLUDED.domain ELSE discoveries.domain END,
				vendor_name = CASE WHEN discoveries.vendor_name = '' THEN EXCLUDED.vendor_name ELSE discoveries.vendor_name END,
				last_seen_at = GREATEST(discoveries.last_seen_at, EXCLUDED.last_seen_at)
			RETURNING id, scopes`,
			key, obs.DisplayName, obs.Domain, obs.VendorName, source, seen).Scan(&id, &scopes)
		if err != nil {
			return mapErr(err, "discovery", key)
		}
		if _, err := tx.Exec(ctx, "UPDATE discoveries SET scopes = $2 WHERE id = $1", id, spend.MergeScopes(scopes, obs.Scopes)); err != nil {
			return err
		}
		if len(obs.Users) > 0 {
			existing, err := listDiscoveryUsers(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := replaceUserRows(ctx, tx, "discovery_users", "discovery_id", id, spend.MergeUsers(existing, obs.Users)); err != nil {
				return err
			}
		}
		out, err = getDiscovery(ctx, tx, id)
		return err
	})
	return out, err
}

// Adopt reuses the linked application when there is one, otherwise creates an application
// from the discovery. Discovered users are merged onto the application either way.
func (r discoveries) Adopt(ctx context.Context, id int64) (spend.Application, error) {
	var app spend.Application
	err := pgx.BeginFunc(ctx, r.s.pool, func(tx pgx.Tx) error {
		d, err := scanDiscovery(tx.QueryRow(ctx,
			"SELECT "+discoveryColumns+" FROM "+discoveryFrom+" WHERE d.id = $1 FOR UPDATE OF d", id))
		if err != nil {
			return mapErr(err, "discovery", id)
		}
		discovered, err := listDiscoveryUsers(ctx, tx, id)
		if err != nil {
			return err
		}
		now := r.s.clock()

		var appID int64
		if d.ApplicationID != nil {
			ok, err := exists(ctx, tx, "applications", *d.ApplicationID)
			if err != nil {
				return err
			}
			if ok {
				appID = *d.ApplicationID
			}
		}
		if appID == 0 {
			in := spend.ApplicationInput{
				Name:   d.DisplayName,
				Vendor: d.VendorName,
				Domain: d.Domain,
				Seats:  len(discovered),
			}
			in.Normalize()
			if err := in.Validate(); err != nil {
				return err
			}
			if appID, err = insertApplication(ctx, tx, in, now); err != nil {
				return err
			}
		}

		current, err := listAppUsers(ctx, tx, appID)
		if err != nil {
			return err
		}
		if err := setAppUsers(ctx, tx, appID, spend.MergeUsers(current, discovered), now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE discoveries SET application_id = $2, state = $3 WHERE id = $1",
			id, appID, spend.DiscoveryStateAdopted); err != nil {
			return err
		}
		app, err = getApplication(ctx, tx, appID)
		return err
	})
	return app, err
}

func (r discoveries) SetState(ctx context.Context, id int64, state string) (spend.Discovery, error) {
	switch state {
	case spend.DiscoveryStateNew, spend.DiscoveryStateAdopted, spend.DiscoveryStateIgnored:
	default:
		return spend.Discovery{}, &spend.ValidationError{Fields: map[string]string{"state": "Unknown discovery state."}}
	}
	tag, err := r.s.pool.Exec(ctx, "UPDATE discoveries SET state = $2 WHERE id = $1", id, state)
	if err != nil {
		return spend.Discovery{}, err
	}
	if err := expectRow(tag, "discovery", id); err != nil {
		return spend.Discovery{}, err
	}
	return getDiscovery(ctx, r.s.pool, id)
}

func (r discoveries) Link(ctx context.Context, id, applicationID int64) error {
	ok, err := exists(ctx, r.s.pool, "applications", applicationID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("application", applicationID)
	}
	tag, err := r.s.pool.Exec(ctx, "UPDATE discoveries SET application_id = $2 WHERE id = $1", id, applicationID)
	if err != nil {
		return mapErr(err, "discovery", id)
	}
	return expectRow(tag, "discovery", id)
}

func (r discoveries) CountByState(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{
		spend.DiscoveryStateNew:     0,
		spend.DiscoveryStateAdopted: 0,
		spend.DiscoveryStateIgnored: 0,
	}
	rows, err := r.s.pool.Query(ctx, "SELECT state, count(*) FROM discoveries GROUP BY state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}
