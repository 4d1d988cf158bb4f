package spend

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DaysToRenewal returns whole calendar days from today until renewal; negative when past.
func DaysToRenewal(renewal, today Date) int {
	if renewal.IsZero() {
		return 0
	}
	return today.DaysUntil(renewal)
}

// MonthlyCost spreads the contract value over its term, rounding half away from zero.
func MonthlyCost(c Contract) int64 {
	if c.TermMonths <= 0 {
		return 0
	}
	return roundDiv(c.ValueCents, int64(c.TermMonths))
}

// AnnualCost is the application's monthly cost times twelve.
func AnnualCost(a Application) int64 {
	return a.MonthlyCostCents * 12
}

// NoticeDeadline is the last day a non-renewal notice can be sent.
func NoticeDeadline(c Contract) Date {
	r := c.EffectiveRenewalDate()
	if r.IsZero() {
		return Date{}
	}
	return r.AddDays(-c.NoticeDays)
}

// MonthsBetween counts whole months covered by the inclusive range [start, end], minimum 1.
func MonthsBetween(start, end Date) int {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 1
	}
	next := end.AddDays(1)
	months := (next.Year()-start.Year())*12 + int(next.Month()-start.Month())
	if next.Day() < start.Day() {
		months--
	}
	if months < 1 {
		return 1
	}
	return months
}

// ContractDetail is a contract with the figures derived at read time.
type ContractDetail struct {
	Contract
	DaysToRenewal    int   `json:"daysToRenewal"`
	MonthlyCostCents int64 `json:"monthlyCostCents"`
	AnnualCostCents  int64 `json:"annualCostCents"`
	NoticeDeadline   Date  `json:"noticeDeadline"`
}

func DescribeContract(c Contract, today Date) ContractDetail {
	monthly := MonthlyCost(c)
	return ContractDetail{
		Contract:         c,
		DaysToRenewal:    DaysToRenewal(c.EffectiveRenewalDate(), today),
		MonthlyCostCents: monthly,
		AnnualCostCents:  monthly * 12,
		NoticeDeadline:   NoticeDeadline(c),
	}
}

func roundDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q := a / b
	r := a % b
	if r < 0 {
		r = -r
	}
	if b < 0 {
		b = -b
	}
	if 2*r >= b {
		if a < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// FormatMoney renders cents as a grouped amount with a currency symbol, e.g. $1,234.56.
func FormatMoney(cents int64, currency string) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	amount := b.String() + "." + strconv.FormatInt(frac/10, 10) + strconv.FormatInt(frac%10, 10)

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	prefix := currency + " "
	if sym, ok := currencySymbols[currency]; ok {
		prefix = sym
	}
	if neg {
		return "-" + prefix + amount
	}
	return prefix + amount
}

// ParseMoney parses a decimal amount like "1,234.5" into cents. Only a single leading minus
// sign and at most two decimals are accepted.
func ParseMoney(raw string) (int64, error) {
	input := raw
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	raw = strings.TrimLeft(raw, "$€£¥")
	if raw == "" {
		return 0, nil
	}
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	whole, frac, _ := strings.Cut(raw, ".")
	if !digitsOnly(whole) || !digitsOnly(frac) || whole+frac == "" {
		return 0, fmt.Errorf("invalid amount %q", input)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q: at most two decimals", input)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("invalid amount %q: out of range", input)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}

func digitsOnly(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
