// Package store defines the persistence contracts shared by the in-memory and Postgres backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with a unique key or a dependent row.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = spend.ErrInvalidInput
)

// Store bundles every repository. Both backends implement it.
type Store interface {
	Applications() ApplicationRepository
	Clients() ClientRepository
	Categories() CategoryRepository
	Contracts() ContractRepository
	Discoveries() DiscoveryRepository
	Leads() LeadRepository
	Costs() CostRepository
	Reminders() ReminderRepository
	Settings() SettingsRepository
	Users() UserRepository

	Ping(ctx context.Context) error
	Close()
}

// ApplicationRepository list filters: "status", "category" (category id), "owner".
// Sort keys: name, cost, renewal, seats, updated.
type ApplicationRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Application], error)
	All(ctx context.Context) ([]spend.Application, error)
	Get(ctx context.Context, id int64) (spend.Application, error)
	Create(ctx context.Context, in spend.ApplicationInput) (spend.Application, error)
	Update(ctx context.Context, id int64, in spend.ApplicationInput) (spend.Application, error)
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) (spend.Application, error)
	AssignOwner(ctx context.Context, id int64, owner string) (spend.Application, error)
	ListUsers(ctx context.Context, id int64) ([]spend.DiscoveredUser, error)
	ReplaceUsers(ctx context.Context, id int64, users []spend.DiscoveredUser) error
	FindByDomainOrName(ctx context.Context, domain, name string) (spend.Application, error)
}

// ClientRepository list filters: "active" ("1" or "0"). Sort keys: name, company, created.
type ClientRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Client], error)
	Get(ctx context.Context, id int64) (spend.Client, error)
	Create(ctx context.Context, in spend.ClientInput) (spend.Client, error)
	Update(ctx context.Context, id int64, in spend.ClientInput) (spend.Client, error)
	Delete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Category], error)
	// Tree returns every category with its subcategories and their fields.
	Tree(ctx context.Context) ([]spend.Category, error)
	Get(ctx context.Context, id int64) (spend.Category, error)
	Create(ctx context.Context, in spend.CategoryInput) (spend.Category, error)
	Update(ctx context.Context, id int64, in spend.CategoryInput) (spend.Category, error)
	Delete(ctx context.Context, id int64) error

	ListSubCategories(ctx context.Context, categoryID int64) ([]spend.SubCategory, error)
	GetSubCategory(ctx context.Context, id int64) (spend.SubCategory, error)
	CreateSubCategory(ctx context.Context, in spend.SubCategoryInput) (spend.SubCategory, error)
	UpdateSubCategory(ctx context.Context, id int64, in spend.SubCategoryInput) (spend.SubCategory, error)
	DeleteSubCategory(ctx context.Context, id int64) error

	ListFields(ctx context.Context, subCategoryID int64) ([]spend.Field, error)
	CreateField(ctx context.Context, in spend.FieldInput) (spend.Field, error)
	UpdateField(ctx context.Context, id int64, in spend.FieldInput) (spend.Field, error)
	DeleteField(ctx context.Context, id int64) error
}

// ContractRepository list filters: "status", "application" (application id),
// "renewing_within" (days from today, cancelled contracts excluded).
// Sort keys: renewal, value, vendor, created.
type ContractRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Contract], error)
	All(ctx context.Context) ([]spend.Contract, error)
	Get(ctx context.Context, id int64) (spend.Contract, error)
	Create(ctx context.Context, in spend.ContractInput) (spend.Contract, error)
	Update(ctx context.Context, id int64, in spend.ContractInput) (spend.Contract, error)
	Delete(ctx context.Context, id int64) error
	ListByApplication(ctx context.Context, applicationID int64) ([]spend.Contract, error)
	// ListRenewingBetween returns non-cancelled contracts whose effective renewal date
	// falls within [from, to], ordered by that date.
	ListRenewingBetween(ctx context.Context, from, to spend.Date) ([]spend.Contract, error)
}

// DiscoveryRepository list filters: "state", "source", "managed" ("1" or "0").
// Sort keys: name, users, last_seen.
type DiscoveryRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Discovery], error)
	Get(ctx context.Context, id int64) (spend.Discovery, error)
	// Upsert merges an observation by canonical key. Users are merged by email keeping the
	// latest last-seen time, and LastSeenAt only moves forward.
	Upsert(ctx context.Context, obs spend.DiscoveryObservation) (spend.Discovery, error)
	// Adopt creates an application from the discovery (or reuses the linked one), copies the
	// discovered users onto it and marks the discovery adopted.
	Adopt(ctx context.Context, id int64) (spend.Application, error)
	SetState(ctx context.Context, id int64, state string) (spend.Discovery, error)
	Link(ctx context.Context, id, applicationID int64) error
	CountByState(ctx context.Context) (map[string]int64, error)
}

// LeadRepository list filters: "status". Sort keys: name, company, created.
type LeadRepository interface {
	List(ctx context.Context, params ListParams) (Page[spend.Lead], error)
	Get(ctx context.Context, id int64) (spend.Lead, error)
	Create(ctx context.Context, in spend.LeadInput) (spend.Lead, error)
	Update(ctx context.Context, id int64, in spend.LeadInput) (spend.Lead, error)
	SetStatus(ctx context.Context, id int64, status string) (spend.Lead, error)
	Delete(ctx context.Context, id int64) error
}

type CostRepository interface {
	// Upsert replaces the amount for (application, month, source).
	Upsert(ctx context.Context, rec spend.CostRecord) error
	ListSince(ctx context.Context, month spend.Date) ([]spend.CostRecord, error)
}

type ReminderRepository interface {
	// Record stores a reminder once per (contract, renewal date); created is false on repeats.
	Record(ctx context.Context, contractID int64, renewalDate spend.Date) (created bool, err error)
	ListRecent(ctx context.Context, limit int) ([]spend.RenewalReminder, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (spend.Settings, error)
	Update(ctx context.Context, in spend.SettingsInput) (spend.Settings, error)
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
}

type UserRepository interface {
	List(ctx context.Context) ([]spend.AuthUser, error)
	Get(ctx context.Context, id int64) (spend.AuthUser, error)
	GetByEmail(ctx context.Context, email string) (spend.AuthUser, error)
	Create(ctx context.Context, params CreateUserParams) (spend.AuthUser, error)
	UpdateRole(ctx context.Context, id int64, role string) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int64, error)
	CountActiveAdmins(ctx context.Context) (int64, error)
	UpdateLoginMeta(ctx context.Context, id int64, at time.Time, ip string) error
}
