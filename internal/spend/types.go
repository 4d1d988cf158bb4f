// Package spend holds the SaaS spend domain: entities, input validation and the
// derived numbers (renewals, monthly cost, seat usage, savings) shown in the console.
package spend

import "time"

const (
	AppStatusActive   = "active"
	AppStatusArchived = "archived"

	BillingMonthly = "monthly"
	BillingAnnual  = "annual"

	ContractStatusActive    = "active"
	ContractStatusPending   = "pending"
	ContractStatusExpired   = "expired"
	ContractStatusCancelled = "cancelled"

	DiscoveryStateNew     = "new"
	DiscoveryStateAdopted = "adopted"
	DiscoveryStateIgnored = "ignored"

	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusLost      = "lost"

	FieldTypeText    = "text"
	FieldTypeNumber  = "number"
	FieldTypeDate    = "date"
	FieldTypeSelect  = "select"
	FieldTypeBoolean = "boolean"

	CostSourceAWS    = "aws_cost_explorer"
	CostSourceManual = "manual"

	DefaultCurrency = "USD"
)

type Application struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	CategoryID       *int64    `json:"categoryId"`
	SubCategoryID    *int64    `json:"subcategoryId"`
	CategoryName     string    `json:"category"`
	Owner            string    `json:"owner"`
	Vendor           string    `json:"vendor"`
	Domain           string    `json:"domain"`
	LogoURL          string    `json:"logoUrl"`
	MonthlyCostCents int64     `json:"monthlyCostCents"`
	Currency         string    `json:"currency"`
	BillingCycle     string    `json:"billingCycle"`
	Seats            int       `json:"seats"`
	Users            int       `json:"users"`
	RenewalDate      *Date     `json:"renewalDate"`
	NextPaymentDate  *Date     `json:"nextPaymentDate"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (a Application) IsActive() bool {
	return a.Status == AppStatusActive
}

type Client struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Category struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	SubCategories    []SubCategory `json:"subcategories,omitempty"`
	ApplicationCount int           `json:"applicationCount"`
}

type SubCategory struct {
	ID          int64   `json:"id"`
	CategoryID  int64   `json:"categoryId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields,omitempty"`
}

type Field struct {
	ID            int64    `json:"id"`
	SubCategoryID int64    `json:"subcategoryId"`
	Name          string   `json:"name"`
	Key           string   `json:"key"`
	Type          string   `json:"type"`
	Required      bool     `json:"required"`
	Options       []string `json:"options,omitempty"`
}

type Contract struct {
	ID              int64     `json:"id"`
	ApplicationID   int64     `json:"applicationId"`
	ApplicationName string    `json:"applicationName"`
	Vendor          string    `json:"vendor"`
	Status          string    `json:"status"`
	StartDate       Date      `json:"startDate"`
	EndDate         Date      `json:"endDate"`
	RenewalDate     *Date     `json:"renewalDate"`
	ValueCents      int64     `json:"valueCents"`
	Currency        string    `json:"currency"`
	TermMonths      int       `json:"termMonths"`
	AutoRenew       bool      `json:"autoRenew"`
	NoticeDays      int       `json:"noticeDays"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EffectiveRenewalDate is the renewal date, falling back to the end date.
func (c Contract) EffectiveRenewalDate() Date {
	if c.RenewalDate != nil && !c.RenewalDate.IsZero() {
		return *c.RenewalDate
	}
	return c.EndDate
}

// DiscoveredUser is a person observed using an application through a discovery source.
type DiscoveredUser struct {
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	LastSeenAt  *time.Time `json:"lastSeenAt"`
	Source      string     `json:"source"`
}

type Discovery struct {
	ID              int64            `json:"id"`
	CanonicalKey    string           `json:"canonicalKey"`
	DisplayName     string           `json:"displayName"`
	Domain          string           `json:"domain"`
	VendorName      string           `json:"vendorName"`
	Source          string           `json:"source"`
	State           string           `json:"state"`
	ApplicationID   *int64           `json:"applicationId"`
	FirstSeenAt     time.Time        `json:"firstSeenAt"`
	LastSeenAt      time.Time        `json:"lastSeenAt"`
	UserCount       int              `json:"userCount"`
	Scopes          []string         `json:"scopes,omitempty"`
	Users           []DiscoveredUser `json:"users,omitempty"`
	ApplicationName string           `json:"applicationName,omitempty"`
}

// Managed reports whether the discovery is linked to an application in the inventory.
func (d Discovery) Managed() bool {
	return d.ApplicationID != nil && *d.ApplicationID > 0
}

// DiscoveryObservation is one source's report of an application and its users.
type DiscoveryObservation struct {
	CanonicalKey string           `json:"canonicalKey"`
	DisplayName  string           `json:"displayName"`
	Domain       string           `json:"domain"`
	VendorName   string           `json:"vendorName"`
	Source       string           `json:"source"`
	ObservedAt   time.Time        `json:"observedAt"`
	Scopes       []string         `json:"scopes,omitempty"`
	Users        []DiscoveredUser `json:"users"`
}

type Lead struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

type CostRecord struct {
	ApplicationID int64  `json:"applicationId"`
	Month         Date   `json:"month"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	Source        string `json:"source"`
}

type RenewalReminder struct {
	ContractID  int64     `json:"contractId"`
	RenewalDate Date      `json:"renewalDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Settings struct {
	OrgName              string    `json:"orgName"`
	Currency             string    `json:"currency"`
	RenewalWindowDays    int       `json:"renewalWindowDays"`
	FiscalYearStartMonth int       `json:"fiscalYearStartMonth"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings used before an admin saves any.
func DefaultSettings() Settings {
	return Settings{
		OrgName:              "My Organization",
		Currency:             DefaultCurrency,
		RenewalWindowDays:    60,
		FiscalYearStartMonth: 1,
	}
}

type AuthUser struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	LastLoginIP  string     `json:"lastLoginIp"`
	CreatedAt    time.Time  `json:"createdAt"`
}
