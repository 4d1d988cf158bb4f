package spend

import (
	"sort"
	"strings"
)

// CurrencyTotals holds amounts kept out of a total because they are billed in another
// currency, keyed by ISO code. Amounts are never converted.
type CurrencyTotals map[string]int64

func (t *CurrencyTotals) add(currency string, cents int64) {
	if *t == nil {
		*t = make(CurrencyTotals)
	}
	(*t)[normalizeCurrency(currency)] += cents
}

// Codes returns the currencies present, sorted.
func (t CurrencyTotals) Codes() []string {
	out := make([]string, 0, len(t))
	for code := range t {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Format renders each amount with its own symbol, e.g. "€12.00 + ¥5,000.00".
func (t CurrencyTotals) Format() string {
	parts := make([]string, 0, len(t))
	for _, code := range t.Codes() {
		parts = append(parts, FormatMoney(t[code], code))
	}
	return strings.Join(parts, " + ")
}

type MonthPoint struct {
	Month           Date           `json:"month"`
	Cents           int64          `json:"cents"`
	OtherCurrencies CurrencyTotals `json:"otherCurrencies,omitempty"`
}

// MonthlySpend returns one point per month for the n months ending with end's month.
// A month's spend is the monthly cost of every non-cancelled, non-pending contract whose
// term covers it, plus cost records booked for it, plus the monthly cost of active
// applications without such a contract. Cents only sums amounts in currency.
func MonthlySpend(n int, end Date, currency string, apps []Application, contracts []Contract, costs []CostRecord) []MonthPoint {
	if n <= 0 || end.IsZero() {
		return nil
	}
	currency = normalizeCurrency(currency)
	last := end.MonthStart()
	points := make([]MonthPoint, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		m := last.AddMonths(i - n + 1)
		points[i].Month = m
		index[m.String()] = i
	}

	book := func(i int, cur string, cents int64) {
		if normalizeCurrency(cur) == currency {
			points[i].Cents += cents
			return
		}
		points[i].OtherCurrencies.add(cur, cents)
	}

	withContract := make(map[int64]bool)
	for _, c := range contracts {
		if c.Status == ContractStatusCancelled || c.Status == ContractStatusPending {
			continue
		}
		withContract[c.ApplicationID] = true
		monthly := MonthlyCost(c)
		from := c.StartDate.MonthStart()
		to := c.EndDate.MonthStart()
		for i := range points {
			m := points[i].Month
			if !m.Before(from) && !m.After(to) {
				book(i, c.Currency, monthly)
			}
		}
	}
	for _, r := range costs {
		if i, ok := index[r.Month.MonthStart().String()]; ok {
			book(i, r.Currency, r.AmountCents)
		}
	}
	for _, a := range apps {
		if !a.IsActive() || withContract[a.ID] {
			continue
		}
		for i := range points {
			book(i, a.Currency, a.MonthlyCostCents)
		}
	}
	return points
}

type CategorySpend struct {
	Name         string `json:"name"`
	MonthlyCents int64  `json:"monthlyCents"`
	Count        int    `json:"count"`
}

// TopCategories ranks active applications' monthly cost by category, highest first.
// Applications billed in a currency other than currency are left out.
func TopCategories(apps []Application, currency string, limit int) []CategorySpend {
	currency = normalizeCurrency(currency)
	byName := make(map[string]*CategorySpend)
	for _, a := range apps {
		if !a.IsActive() || normalizeCurrency(a.Currency) != currency {
			continue
		}
		name := strings.TrimSpace(a.CategoryName)
		if name == "" {
			name = "Uncategorized"
		}
		cs, ok := byName[name]
		if !ok {
			cs = &CategorySpend{Name: name}
			byName[name] = cs
		}
		cs.MonthlyCents += a.MonthlyCostCents
		cs.Count++
	}
	out := make([]CategorySpend, 0, len(byName))
	for _, cs := range byName {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyCents != out[j].MonthlyCents {
			return out[i].MonthlyCents > out[j].MonthlyCents
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summary money fields are in Currency. OtherCurrencies carries the monthly cost of active
// applications billed in anything else; they are counted but not summed.
type Summary struct {
	Currency           string         `json:"currency"`
	ActiveApplications int            `json:"activeApplications"`
	MonthlyCents       int64          `json:"monthlyCents"`
	AnnualCents        int64          `json:"annualCents"`
	OtherCurrencies    CurrencyTotals `json:"otherCurrencies,omitempty"`
	TotalSeats         int            `json:"totalSeats"`
	TotalUsers         int            `json:"totalUsers"`
	RenewingSoon       int            `json:"renewingSoon"`
	ActiveContracts    int            `json:"activeContracts"`
}

// Summarize computes the dashboard KPIs. Renewals within windowDays of today count as soon.
func Summarize(apps []Application, contracts []Contract, currency string, today Date, windowDays int) Summary {
	s := Summary{Currency: normalizeCurrency(currency)}
	for _, a := range apps {
		if !a.IsActive() {
			continue
		}
		s.ActiveApplications++
		s.TotalSeats += a.Seats
		s.TotalUsers += a.Users
		if normalizeCurrency(a.Currency) != s.Currency {
			s.OtherCurrencies.add(a.Currency, a.MonthlyCostCents)
			continue
		}
		s.MonthlyCents += a.MonthlyCostCents
	}
	s.AnnualCents = s.MonthlyCents * 12
	for _, c := range contracts {
		if c.Status != ContractStatusActive {
			continue
		}
		s.ActiveContracts++
		days := DaysToRenewal(c.EffectiveRenewalDate(), today)
		if days >= 0 && days <= windowDays {
			s.RenewingSoon++
		}
	}
	return s
}
