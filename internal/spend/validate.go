package spend

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidInput is the sentinel every ValidationError matches with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError carries field-level messages keyed by input field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Field returns the message for one field, or "".
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(f)}
}

// FieldErrors extracts field messages from err, or nil when err is not a ValidationError.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

var (
	phonePattern = regexp.MustCompile(`^[0-9 +\-()]{7,20}$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
	domainLike   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// Slugify turns a display name into a lower_snake key.
func Slugify(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

type ApplicationInput struct {
	Name             string `json:"name"`
	CategoryID       *int64 `json:"categoryId"`
	SubCategoryID    *int64 `json:"subcategoryId"`
	Owner            string `json:"owner"`
	Vendor           string `json:"vendor"`
	Domain           string `json:"domain"`
	LogoURL          string `json:"logoUrl"`
	MonthlyCostCents int64  `json:"monthlyCostCents"`
	Currency         string `json:"currency"`
	BillingCycle     string `json:"billingCycle"`
	Seats            int    `json:"seats"`
	Users            int    `json:"users"`
	RenewalDate      *Date  `json:"renewalDate"`
	NextPaymentDate  *Date  `json:"nextPaymentDate"`
	Status           string `json:"status"`
}

func (in *ApplicationInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Owner = strings.TrimSpace(in.Owner)
	in.Vendor = strings.TrimSpace(in.Vendor)
	in.Domain = strings.ToLower(strings.TrimSpace(in.Domain))
	in.Domain = strings.TrimPrefix(strings.TrimPrefix(in.Domain, "https://"), "http://")
	in.Domain = strings.TrimSuffix(in.Domain, "/")
	in.LogoURL = strings.TrimSpace(in.LogoURL)
	in.Currency = normalizeCurrency(in.Currency)
	in.BillingCycle = strings.ToLower(strings.TrimSpace(in.BillingCycle))
	if in.BillingCycle == "" {
		in.BillingCycle = BillingMonthly
	}
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = AppStatusActive
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		in.CategoryID = nil
	}
	if in.SubCategoryID != nil && *in.SubCategoryID <= 0 {
		in.SubCategoryID = nil
	}
}

func (in ApplicationInput) Validate() error {
	errs := fieldErrors{}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	} else if len(in.Name) > 200 {
		errs.add("name", "Name must be at most 200 characters.")
	}
	if in.Domain != "" && !domainLike.MatchString(in.Domain) {
		errs.add("domain", "Domain must look like example.com.")
	}
	if in.LogoURL != "" && !strings.HasPrefix(in.LogoURL, "https://") && !strings.HasPrefix(in.LogoURL, "http://") {
		errs.add("logoUrl", "Logo URL must be an http(s) URL.")
	}
	if in.MonthlyCostCents < 0 {
		errs.add("monthlyCostCents", "Cost cannot be negative.")
	}
	if !currencyCode.MatchString(in.Currency) {
		errs.add("currency", "Currency must be a 3-letter ISO code.")
	}
	if !oneOf(in.BillingCycle, BillingMonthly, BillingAnnual) {
		errs.add("billingCycle", "Billing cycle must be monthly or annual.")
	}
	if in.Seats < 0 {
		errs.add("seats", "Seats cannot be negative.")
	}
	if in.Users < 0 {
		errs.add("users", "Users cannot be negative.")
	}
	if !oneOf(in.Status, AppStatusActive, AppStatusArchived) {
		errs.add("status", "Status must be active or archived.")
	}
	if in.SubCategoryID != nil && in.CategoryID == nil {
		errs.add("subcategoryId", "Pick a category before a subcategory.")
	}
	return errs.err()
}

type ClientInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

func (in *ClientInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Company = strings.TrimSpace(in.Company)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Description = strings.TrimSpace(in.Description)
}

func (in ClientInput) Validate() error {
	errs := fieldErrors{}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	}
	if in.Email == "" {
		errs.add("email", "Email is required.")
	} else if !ValidEmail(in.Email) {
		errs.add("email", "Enter a valid email address.")
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		errs.add("phone", "Phone may contain digits, spaces and + - ( ) (7 to 20 characters).")
	}
	if len(in.Description) > 2000 {
		errs.add("description", "Description must be at most 2000 characters.")
	}
	return errs.err()
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *CategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in CategoryInput) Validate() error {
	errs := fieldErrors{}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	} else if len(in.Name) > 100 {
		errs.add("name", "Name must be at most 100 characters.")
	}
	return errs.err()
}

type SubCategoryInput struct {
	CategoryID  int64  `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *SubCategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in SubCategoryInput) Validate() error {
	errs := fieldErrors{}
	if in.CategoryID <= 0 {
		errs.add("categoryId", "Category is required.")
	}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	}
	return errs.err()
}

type FieldInput struct {
	SubCategoryID int64    `json:"subcategoryId"`
	Name          string   `json:"name"`
	Key           string   `json:"key"`
	Type          string   `json:"type"`
	Required      bool     `json:"required"`
	Options       []string `json:"options"`
}

func (in *FieldInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Key = strings.TrimSpace(in.Key)
	if in.Key == "" {
		in.Key = Slugify(in.Name)
	}
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = FieldTypeText
	}
	opts := make([]string, 0, len(in.Options))
	seen := map[string]struct{}{}
	for _, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		opts = append(opts, o)
	}
	if in.Type != FieldTypeSelect {
		opts = nil
	}
	in.Options = opts
}

func (in FieldInput) Validate() error {
	errs := fieldErrors{}
	if in.SubCategoryID <= 0 {
		errs.add("subcategoryId", "Subcategory is required.")
	}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	}
	if !slugPattern.MatchString(in.Key) {
		errs.add("key", "Key must be lower_snake_case.")
	}
	if !oneOf(in.Type, FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeSelect, FieldTypeBoolean) {
		errs.add("type", fmt.Sprintf("Unknown field type %q.", in.Type))
	}
	if in.Type == FieldTypeSelect && len(in.Options) == 0 {
		errs.add("options", "Select fields need at least one option.")
	}
	return errs.err()
}

type ContractInput struct {
	ApplicationID int64  `json:"applicationId"`
	Vendor        string `json:"vendor"`
	Status        string `json:"status"`
	StartDate     Date   `json:"startDate"`
	EndDate       Date   `json:"endDate"`
	RenewalDate   *Date  `json:"renewalDate"`
	ValueCents    int64  `json:"valueCents"`
	Currency      string `json:"currency"`
	TermMonths    int    `json:"termMonths"`
	AutoRenew     bool   `json:"autoRenew"`
	NoticeDays    int    `json:"noticeDays"`
	Notes         string `json:"notes"`
}

func (in *ContractInput) Normalize() {
	in.Vendor = strings.TrimSpace(in.Vendor)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = ContractStatusActive
	}
	in.Currency = normalizeCurrency(in.Currency)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.RenewalDate != nil && in.RenewalDate.IsZero() {
		in.RenewalDate = nil
	}
	if in.RenewalDate == nil && !in.EndDate.IsZero() {
		end := in.EndDate
		in.RenewalDate = &end
	}
	if in.TermMonths == 0 && !in.StartDate.IsZero() && !in.EndDate.IsZero() {
		in.TermMonths = MonthsBetween(in.StartDate, in.EndDate)
	}
}

func (in ContractInput) Validate() error {
	errs := fieldErrors{}
	if in.ApplicationID <= 0 {
		errs.add("applicationId", "Application is required.")
	}
	if !oneOf(in.Status, ContractStatusActive, ContractStatusPending, ContractStatusExpired, ContractStatusCancelled) {
		errs.add("status", "Unknown contract status.")
	}
	if in.StartDate.IsZero() {
		errs.add("startDate", "Start date is required.")
	}
	if in.EndDate.IsZero() {
		errs.add("endDate", "End date is required.")
	} else if !in.StartDate.IsZero() && in.EndDate.Before(in.StartDate) {
		errs.add("endDate", "End date must not be before the start date.")
	}
	if in.ValueCents < 0 {
		errs.add("valueCents", "Value cannot be negative.")
	}
	if !currencyCode.MatchString(in.Currency) {
		errs.add("currency", "Currency must be a 3-letter ISO code.")
	}
	if in.TermMonths <= 0 {
		errs.add("termMonths", "Term must be at least one month.")
	}
	if in.NoticeDays < 0 || in.NoticeDays > 365 {
		errs.add("noticeDays", "Notice period must be between 0 and 365 days.")
	}
	return errs.err()
}

type LeadInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Source  string `json:"source"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

func (in *LeadInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Company = strings.TrimSpace(in.Company)
	in.Source = strings.TrimSpace(in.Source)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = LeadStatusNew
	}
	in.Notes = strings.TrimSpace(in.Notes)
}

func (in LeadInput) Validate() error {
	errs := fieldErrors{}
	if in.Name == "" {
		errs.add("name", "Name is required.")
	}
	if in.Email != "" && !ValidEmail(in.Email) {
		errs.add("email", "Enter a valid email address.")
	}
	if !ValidLeadStatus(in.Status) {
		errs.add("status", "Unknown lead status.")
	}
	return errs.err()
}

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	return oneOf(s, LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost)
}

type SettingsInput struct {
	OrgName              string `json:"orgName"`
	Currency             string `json:"currency"`
	RenewalWindowDays    int    `json:"renewalWindowDays"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth"`
}

func (in *SettingsInput) Normalize() {
	in.OrgName = strings.TrimSpace(in.OrgName)
	in.Currency = normalizeCurrency(in.Currency)
	if in.RenewalWindowDays == 0 {
		in.RenewalWindowDays = DefaultSettings().RenewalWindowDays
	}
	if in.FiscalYearStartMonth == 0 {
		in.FiscalYearStartMonth = 1
	}
}

func (in SettingsInput) Validate() error {
	errs := fieldErrors{}
	if in.OrgName == "" {
		errs.add("orgName", "Organization name is required.")
	}
	if !currencyCode.MatchString(in.Currency) {
		errs.add("currency", "Currency must be a 3-letter ISO code.")
	}
	if in.RenewalWindowDays < 1 || in.RenewalWindowDays > 365 {
		errs.add("renewalWindowDays", "Renewal window must be between 1 and 365 days.")
	}
	if in.FiscalYearStartMonth < 1 || in.FiscalYearStartMonth > 12 {
		errs.add("fiscalYearStartMonth", "Fiscal year start must be a month between 1 and 12.")
	}
	return errs.err()
}
