package spend

import (
	"sort"
	"strings"
	"time"
)

const (
	EntryKindContract    = "contract"
	EntryKindApplication = "application"
)

type CalendarEntry struct {
	Kind             string `json:"kind"`
	ID               int64  `json:"id"`
	ApplicationID    int64  `json:"applicationId"`
	Name             string `json:"name"`
	Vendor           string `json:"vendor"`
	Date             Date   `json:"date"`
	MonthlyCostCents int64  `json:"monthlyCostCents"`
	Currency         string `json:"currency"`
	AutoRenew        bool   `json:"autoRenew"`
}

// CalendarMonth totals are in the calendar's currency. Entries billed in any other currency
// are listed but only summed into OtherCurrencies.
type CalendarMonth struct {
	Month           time.Month      `json:"month"`
	Entries         []CalendarEntry `json:"entries"`
	TotalCents      int64           `json:"totalCents"`
	OtherCurrencies CurrencyTotals  `json:"otherCurrencies,omitempty"`
}

type Calendar struct {
	Year            int             `json:"year"`
	Currency        string          `json:"currency"`
	Months          []CalendarMonth `json:"months"`
	TotalCents      int64           `json:"totalCents"`
	OtherCurrencies CurrencyTotals  `json:"otherCurrencies,omitempty"`
}

// RenewalCalendar buckets contract and application renewals of one year by month.
// Each contract and application appears at most once; cancelled contracts and archived
// applications are left out. Totals are kept per currency, never converted.
func RenewalCalendar(year int, currency string, contracts []Contract, apps []Application) Calendar {
	currency = normalizeCurrency(currency)
	cal := Calendar{Year: year, Currency: currency, Months: make([]CalendarMonth, 12)}
	for i := range cal.Months {
		cal.Months[i].Month = time.Month(i + 1)
	}

	appNames := make(map[int64]string, len(apps))
	for _, a := range apps {
		appNames[a.ID] = a.Name
	}

	type entryKey struct {
		kind string
		id   int64
	}
	seen := make(map[entryKey]struct{})
	add := func(e CalendarEntry) {
		if e.Date.IsZero() || e.Date.Year() != year {
			return
		}
		k := entryKey{e.Kind, e.ID}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		m := &cal.Months[e.Date.Month()-1]
		e.Currency = normalizeCurrency(e.Currency)
		m.Entries = append(m.Entries, e)
		if e.Currency != currency {
			m.OtherCurrencies.add(e.Currency, e.MonthlyCostCents)
			cal.OtherCurrencies.add(e.Currency, e.MonthlyCostCents)
			return
		}
		m.TotalCents += e.MonthlyCostCents
		cal.TotalCents += e.MonthlyCostCents
	}

	for _, c := range contracts {
		if c.Status == ContractStatusCancelled {
			continue
		}
		name := c.ApplicationName
		if name == "" {
			name = appNames[c.ApplicationID]
		}
		add(CalendarEntry{
			Kind:             EntryKindContract,
			ID:               c.ID,
			ApplicationID:    c.ApplicationID,
			Name:             name,
			Vendor:           c.Vendor,
			Date:             c.EffectiveRenewalDate(),
			MonthlyCostCents: MonthlyCost(c),
			Currency:         c.Currency,
			AutoRenew:        c.AutoRenew,
		})
	}
	for _, a := range apps {
		if !a.IsActive() || a.RenewalDate == nil {
			continue
		}
		add(CalendarEntry{
			Kind:             EntryKindApplication,
			ID:               a.ID,
			ApplicationID:    a.ID,
			Name:             a.Name,
			Vendor:           a.Vendor,
			Date:             *a.RenewalDate,
			MonthlyCostCents: a.MonthlyCostCents,
			Currency:         a.Currency,
		})
	}

	for i := range cal.Months {
		entries := cal.Months[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			if !entries[a].Date.Equal(entries[b].Date) {
				return entries[a].Date.Before(entries[b].Date)
			}
			return strings.ToLower(entries[a].Name) < strings.ToLower(entries[b].Name)
		})
	}
	return cal
}

// Entries flattens the calendar in date order.
func (c Calendar) Entries() []CalendarEntry {
	var out []CalendarEntry
	for _, m := range c.Months {
		out = append(out, m.Entries...)
	}
	return out
}
