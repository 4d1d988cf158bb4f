// Package pgstore is the Postgres-backed Store. Queries are plain SQL over a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by the pool and by a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects a pool and verifies it with a ping.
func Open(ctx context.Context, databaseURL string, maxConns int, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool, opts...), nil
}

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool exposes the pool for session storage.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) clock() time.Time { return s.now().UTC() }

func (s *Store) Applications() store.ApplicationRepository { return applications{s} }
func (s *Store) Clients() store.ClientRepository           { return clients{s} }
func (s *Store) Categories() store.CategoryRepository      { return categories{s} }
func (s *Store) Contracts() store.ContractRepository       { return contracts{s} }
func (s *Store) Discoveries() store.DiscoveryRepository    { return discoveries{s} }
func (s *Store) Leads() store.LeadRepository               { return leads{s} }
func (s *Store) Costs() store.CostRepository               { return costs{s} }
func (s *Store) Reminders() store.ReminderRepository       { return reminders{s} }
func (s *Store) Settings() store.SettingsRepository        { return settingsRepo{s} }
func (s *Store) Users() store.UserRepository               { return users{s} }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

// mapErr translates driver errors into store sentinels.
func mapErr(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s already exists (%s): %w", entity, pgErr.ConstraintName, store.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s is referenced or references a missing row (%s): %w", entity, pgErr.ConstraintName, store.ErrConflict)
		}
	}
	return err
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, store.ErrNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, store.ErrConflict)...)
}

func expectRow(tag pgconn.CommandTag, entity string, id any) error {
	if tag.RowsAffected() == 0 {
		return notFound(entity, id)
	}
	return nil
}

func exists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&ok)
	return ok, err
}

func dateArg(d *spend.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time()
}

func datePtr(t *time.Time) *spend.Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := spend.DateOf(*t)
	return &d
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// listQuery accumulates WHERE clauses with positional arguments.
type listQuery struct {
	where []string
	args  []any
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *listQuery) and(cond string) {
	q.where = append(q.where, cond)
}

// search adds a case-insensitive substring match over cols.
func (q *listQuery) search(query string, cols ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(cols) == 0 {
		return
	}
	p := q.arg("%" + escapeLike(query) + "%")
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col+" ILIKE "+p)
	}
	q.and("(" + strings.Join(parts, " OR ") + ")")
}

func (q *listQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy picks a whitelisted column for the sort key; ties break on idCol.
func orderBy(sortKey string, desc bool, columns map[string]string, fallback, idCol string) string {
	col, ok := columns[sortKey]
	if !ok {
		col = fallback
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	return col + dir + " NULLS LAST, " + idCol + " ASC"
}

func fetchPage[T any](ctx context.Context, q querier, params store.ListParams, columns, from string, lq *listQuery, order string, scan func(rowScanner) (T, error)) (store.Page[T], error) {
	params = params.Normalized()
	where := lq.whereSQL()
	countArgs := slices.Clone(lq.args)

	var total int64
	if err := q.QueryRow(ctx, "SELECT count(*) FROM "+from+where, countArgs...).Scan(&total); err != nil {
		return store.Page[T]{}, err
	}
	limit := lq.arg(params.Size)
	offset := lq.arg(params.Offset())
	rows, err := q.Query(ctx, "SELECT "+columns+" FROM "+from+where+" ORDER BY "+order+" LIMIT "+limit+" OFFSET "+offset, lq.args...)
	if err != nil {
		return store.Page[T]{}, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) { return scan(row) })
	if err != nil {
		return store.Page[T]{}, err
	}
	return store.NewPage(items, total, params), nil
}

func collect[T any](ctx context.Context, q querier, sql string, scan func(rowScanner) (T, error), args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) { return scan(row) })
}

// LockKey derives the advisory lock key for a job name.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("stackspend.job"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return int64(h.Sum64())
}

type advisoryLockRunner struct {
	pool  *pgxpool.Pool
	key   int64
	inner jobs.Runner
}

// LockedRunner serializes a job across processes with a session advisory lock. A pass that
// finds the lock held returns jobs.ErrAlreadyRunning.
func (s *Store) LockedRunner(name string, inner jobs.Runner) jobs.Runner {
	return &advisoryLockRunner{pool: s.pool, key: LockKey(name), inner: inner}
}

func (r *advisoryLockRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.pool == nil || r.inner == nil {
		return errors.New("job runner is not configured")
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", r.key).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		return jobs.ErrAlreadyRunning
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", r.key)
	}()
	return r.inner.RunOnce(ctx)
}
