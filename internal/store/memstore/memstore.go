// Package memstore is the in-memory Store used when USE_MOCK_DATA is set and in tests.
// Every read returns copies, so callers may mutate results freely.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stackspend/stackspend/internal/fixtures"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type costKey struct {
	applicationID int64
	month         string
	source        string
}

type reminderKey struct {
	contractID  int64
	renewalDate string
}

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	apps        map[int64]spend.Application
	appUsers    map[int64][]spend.DiscoveredUser
	clients     map[int64]spend.Client
	categories  map[int64]spend.Category
	subs        map[int64]spend.SubCategory
	fields      map[int64]spend.Field
	contracts   map[int64]spend.Contract
	discoveries map[int64]spend.Discovery
	leads       map[int64]spend.Lead
	costs       map[costKey]spend.CostRecord
	reminders   map[reminderKey]spend.RenewalReminder
	users       map[int64]spend.AuthUser
	settings    spend.Settings
}

type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		apps:        map[int64]spend.Application{},
		appUsers:    map[int64][]spend.DiscoveredUser{},
		clients:     map[int64]spend.Client{},
		categories:  map[int64]spend.Category{},
		subs:        map[int64]spend.SubCategory{},
		fields:      map[int64]spend.Field{},
		contracts:   map[int64]spend.Contract{},
		discoveries: map[int64]spend.Discovery{},
		leads:       map[int64]spend.Lead{},
		costs:       map[costKey]spend.CostRecord{},
		reminders:   map[reminderKey]spend.RenewalReminder{},
		users:       map[int64]spend.AuthUser{},
		settings:    spend.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeeded returns a store loaded with the embedded demo dataset, dated relative to the
// store clock.
func NewSeeded(ctx context.Context, opts ...Option) (*Store, fixtures.Report, error) {
	s := New(opts...)
	ds, err := fixtures.Demo(s.clock())
	if err != nil {
		return nil, fixtures.Report{}, fmt.Errorf("load demo fixtures: %w", err)
	}
	rep, err := fixtures.Apply(ctx, s, ds)
	if err != nil {
		return nil, rep, fmt.Errorf("apply demo fixtures: %w", err)
	}
	return s, rep, nil
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// nextID must be called with the write lock held. IDs are unique across tables.
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

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

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

var _ store.Store = (*Store)(nil)

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, store.ErrConflict)...)
}

// matchesQuery reports whether any of the values contains q, ignoring case.
func matchesQuery(q string, values ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// sortBy orders items with less, reversing when desc. Ties keep id order.
func sortBy[T any](items []T, desc bool, id func(T) int64, less func(a, b T) int) {
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if c == 0 {
			return id(items[i]) < id(items[j])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareInts[N int | int64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	return a.Compare(b)
}

// compareDates orders nil dates last.
func compareDates(a, b *spend.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}

func copyDate(d *spend.Date) *spend.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyUsers(users []spend.DiscoveredUser) []spend.DiscoveredUser {
	if users == nil {
		return nil
	}
	out := make([]spend.DiscoveredUser, len(users))
	for i, u := range users {
		if u.LastSeenAt != nil {
			t := *u.LastSeenAt
			u.LastSeenAt = &t
		}
		out[i] = u
	}
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func valuesOf[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
