// Package fixtures embeds the demo dataset and resolves it into store inputs.
package fixtures

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

// DemoYAML returns the embedded demo dataset.
func DemoYAML() []byte {
	return demoYAML
}

type fileUser struct {
	Email           string `yaml:"email"`
	DisplayName     string `yaml:"displayName"`
	LastSeenDaysAgo *int   `yaml:"lastSeenDaysAgo"`
}

type fileField struct {
	Name     string   `yaml:"name"`
	Key      string   `yaml:"key"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
}

type fileSubCategory struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Fields      []fileField `yaml:"fields"`
}

type fileCategory struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	SubCategories []fileSubCategory `yaml:"subcategories"`
}

type fileApplication struct {
	Name              string     `yaml:"name"`
	Category          string     `yaml:"category"`
	SubCategory       string     `yaml:"subcategory"`
	Owner             string     `yaml:"owner"`
	Vendor            string     `yaml:"vendor"`
	Domain            string     `yaml:"domain"`
	LogoURL           string     `yaml:"logoUrl"`
	MonthlyCostCents  int64      `yaml:"monthlyCostCents"`
	Currency          string     `yaml:"currency"`
	BillingCycle      string     `yaml:"billingCycle"`
	Seats             int        `yaml:"seats"`
	RenewalInDays     *int       `yaml:"renewalInDays"`
	NextPaymentInDays *int       `yaml:"nextPaymentInDays"`
	Status            string     `yaml:"status"`
	Users             []fileUser `yaml:"users"`
}

type fileContract struct {
	Application    string `yaml:"application"`
	Vendor         string `yaml:"vendor"`
	Status         string `yaml:"status"`
	StartMonthsAgo int    `yaml:"startMonthsAgo"`
	TermMonths     int    `yaml:"termMonths"`
	ValueCents     int64  `yaml:"valueCents"`
	Currency       string `yaml:"currency"`
	AutoRenew      bool   `yaml:"autoRenew"`
	NoticeDays     int    `yaml:"noticeDays"`
	Notes          string `yaml:"notes"`
}

type fileDiscovery struct {
	DisplayName string     `yaml:"displayName"`
	Domain      string     `yaml:"domain"`
	Source      string     `yaml:"source"`
	Users       []fileUser `yaml:"users"`
}

type fileCosts struct {
	Application string  `yaml:"application"`
	Source      string  `yaml:"source"`
	MonthsAgo   []int   `yaml:"monthsAgo"`
	AmountCents []int64 `yaml:"amountCents"`
}

type fileSettings struct {
	OrgName              string `yaml:"orgName"`
	Currency             string `yaml:"currency"`
	RenewalWindowDays    int    `yaml:"renewalWindowDays"`
	FiscalYearStartMonth int    `yaml:"fiscalYearStartMonth"`
}

type file struct {
	Settings     fileSettings      `yaml:"settings"`
	Categories   []fileCategory    `yaml:"categories"`
	Applications []fileApplication `yaml:"applications"`
	Contracts    []fileContract    `yaml:"contracts"`
	// Client and lead inputs decode by yaml.v3's lowercased field names.
	Clients     []spend.ClientInput `yaml:"clients"`
	Leads       []spend.LeadInput   `yaml:"leads"`
	Discoveries []fileDiscovery     `yaml:"discoveries"`
	Costs       []fileCosts         `yaml:"costs"`
}

type SubCategorySeed struct {
	Input  spend.SubCategoryInput
	Fields []spend.FieldInput
}

type CategorySeed struct {
	Input         spend.CategoryInput
	SubCategories []SubCategorySeed
}

// ApplicationSeed references its category by name; ids are assigned when applied.
type ApplicationSeed struct {
	Category    string
	SubCategory string
	Input       spend.ApplicationInput
	Users       []spend.DiscoveredUser
}

type ContractSeed struct {
	Application string
	Input       spend.ContractInput
}

type CostSeed struct {
	Application string
	Record      spend.CostRecord
}

// Dataset is the demo data resolved against a load date.
type Dataset struct {
	Settings     spend.SettingsInput
	Categories   []CategorySeed
	Applications []ApplicationSeed
	Contracts    []ContractSeed
	Clients      []spend.ClientInput
	Leads        []spend.LeadInput
	Discoveries  []spend.DiscoveryObservation
	Costs        []CostSeed
}

// Demo parses the embedded dataset relative to now.
func Demo(now time.Time) (Dataset, error) {
	return Parse(demoYAML, now)
}

// Parse decodes a fixture document and resolves relative offsets against now.
func Parse(raw []byte, now time.Time) (Dataset, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Dataset{}, fmt.Errorf("parse fixtures: %w", err)
	}

	now = now.UTC()
	today := spend.DateOf(now)
	ds := Dataset{Settings: spend.SettingsInput{
		OrgName:              f.Settings.OrgName,
		Currency:             f.Settings.Currency,
		RenewalWindowDays:    f.Settings.RenewalWindowDays,
		FiscalYearStartMonth: f.Settings.FiscalYearStartMonth,
	}}
	ds.Settings.Normalize()
	if err := ds.Settings.Validate(); err != nil {
		return Dataset{}, fmt.Errorf("fixture settings: %w", err)
	}

	for _, fc := range f.Categories {
		seed := CategorySeed{Input: spend.CategoryInput{Name: fc.Name, Description: fc.Description}}
		seed.Input.Normalize()
		if err := seed.Input.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("fixture category %q: %w", fc.Name, err)
		}
		for _, fs := range fc.SubCategories {
			sub := SubCategorySeed{Input: spend.SubCategoryInput{Name: fs.Name, Description: fs.Description}}
			sub.Input.Normalize()
			for _, ff := range fs.Fields {
				field := spend.FieldInput{Name: ff.Name, Key: ff.Key, Type: ff.Type, Required: ff.Required, Options: ff.Options}
				field.Normalize()
				sub.Fields = append(sub.Fields, field)
			}
			seed.SubCategories = append(seed.SubCategories, sub)
		}
		ds.Categories = append(ds.Categories, seed)
	}

	appNames := make(map[string]struct{}, len(f.Applications))
	for _, fa := range f.Applications {
		in := spend.ApplicationInput{
			Name:             fa.Name,
			Owner:            fa.Owner,
			Vendor:           fa.Vendor,
			Domain:           fa.Domain,
			LogoURL:          fa.LogoURL,
			MonthlyCostCents: fa.MonthlyCostCents,
			Currency:         fa.Currency,
			BillingCycle:     fa.BillingCycle,
			Seats:            fa.Seats,
			Users:            len(fa.Users),
			Status:           fa.Status,
		}
		if fa.RenewalInDays != nil {
			d := today.AddDays(*fa.RenewalInDays)
			in.RenewalDate = &d
		}
		if fa.NextPaymentInDays != nil {
			d := today.AddDays(*fa.NextPaymentInDays)
			in.NextPaymentDate = &d
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("fixture application %q: %w", fa.Name, err)
		}
		appNames[strings.ToLower(in.Name)] = struct{}{}
		ds.Applications = append(ds.Applications, ApplicationSeed{
			Category:    strings.TrimSpace(fa.Category),
			SubCategory: strings.TrimSpace(fa.SubCategory),
			Input:       in,
			Users:       resolveUsers(fa.Users, "fixture", now),
		})
	}

	requireApp := func(kind, name string) error {
		if _, ok := appNames[strings.ToLower(strings.TrimSpace(name))]; !ok {
			return fmt.Errorf("fixture %s references unknown application %q", kind, name)
		}
		return nil
	}

	for _, fc := range f.Contracts {
		if err := requireApp("contract", fc.Application); err != nil {
			return Dataset{}, err
		}
		start := today.MonthStart().AddMonths(-fc.StartMonthsAgo)
		in := spend.ContractInput{
			ApplicationID: -1,
			Vendor:        fc.Vendor,
			Status:        fc.Status,
			StartDate:     start,
			EndDate:       start.AddMonths(fc.TermMonths).AddDays(-1),
			ValueCents:    fc.ValueCents,
			Currency:      fc.Currency,
			TermMonths:    fc.TermMonths,
			AutoRenew:     fc.AutoRenew,
			NoticeDays:    fc.NoticeDays,
			Notes:         fc.Notes,
		}
		in.Normalize()
		ds.Contracts = append(ds.Contracts, ContractSeed{Application: fc.Application, Input: in})
	}

	for _, in := range f.Clients {
		in.Normalize()
		if err := in.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("fixture client %q: %w", in.Name, err)
		}
		ds.Clients = append(ds.Clients, in)
	}
	for _, in := range f.Leads {
		in.Normalize()
		if err := in.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("fixture lead %q: %w", in.Name, err)
		}
		ds.Leads = append(ds.Leads, in)
	}

	for _, fd := range f.Discoveries {
		source := strings.TrimSpace(fd.Source)
		if source == "" {
			source = discovery.SourceManual
		}
		meta := discovery.BuildMetadata(discovery.CanonicalInput{
			SourceKind:    source,
			SourceAppName: fd.DisplayName,
			SourceDomain:  fd.Domain,
		})
		ds.Discoveries = append(ds.Discoveries, spend.DiscoveryObservation{
			CanonicalKey: meta.CanonicalKey,
			DisplayName:  meta.DisplayName,
			Domain:       meta.Domain,
			VendorName:   meta.VendorName,
			Source:       source,
			ObservedAt:   now,
			Users:        resolveUsers(fd.Users, source, now),
		})
	}

	for _, fc := range f.Costs {
		if err := requireApp("cost", fc.Application); err != nil {
			return Dataset{}, err
		}
		if len(fc.MonthsAgo) != len(fc.AmountCents) {
			return Dataset{}, fmt.Errorf("fixture costs for %q: %d months but %d amounts", fc.Application, len(fc.MonthsAgo), len(fc.AmountCents))
		}
		source := fc.Source
		if source == "" {
			source = spend.CostSourceManual
		}
		for i, ago := range fc.MonthsAgo {
			ds.Costs = append(ds.Costs, CostSeed{
				Application: fc.Application,
				Record: spend.CostRecord{
					Month:       today.MonthStart().AddMonths(-ago),
					AmountCents: fc.AmountCents[i],
					Currency:    spend.DefaultCurrency,
					Source:      source,
				},
			})
		}
	}

	return ds, nil
}

func resolveUsers(users []fileUser, source string, now time.Time) []spend.DiscoveredUser {
	if len(users) == 0 {
		return nil
	}
	out := make([]spend.DiscoveredUser, 0, len(users))
	for _, u := range users {
		du := spend.DiscoveredUser{
			Email:       strings.ToLower(strings.TrimSpace(u.Email)),
			DisplayName: strings.TrimSpace(u.DisplayName),
			Source:      source,
		}
		if u.LastSeenDaysAgo != nil {
			seen := now.Add(-time.Duration(*u.LastSeenDaysAgo) * 24 * time.Hour)
			du.LastSeenAt = &seen
		}
		out = append(out, du)
	}
	return out
}
