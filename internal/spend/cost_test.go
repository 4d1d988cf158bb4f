package spend

import (
	"testing"
	"time"
)

func TestMonthlyCostRoundsHalfAwayFromZero(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value int64
		term  int
		want  int64
	}{
		{value: 12000_00, term: 12, want: 1000_00},
		{value: 100, term: 3, want: 33},
		{value: 200, term: 3, want: 67},
		{value: 150, term: 100, want: 2},
		{value: -150, term: 100, want: -2},
		{value: 5000, term: 0, want: 0},
	}
	for _, tc := range cases {
		got := MonthlyCost(Contract{ValueCents: tc.value, TermMonths: tc.term})
		if got != tc.want {
			t.Fatalf("MonthlyCost(%d/%d) = %d, want %d", tc.value, tc.term, got, tc.want)
		}
	}
}

func TestDaysToRenewal(t *testing.T) {
	t.Parallel()

	today := NewDate(2026, time.January, 30)
	if got := DaysToRenewal(NewDate(2026, time.March, 1), today); got != 30 {
		t.Fatalf("DaysToRenewal future = %d, want 30", got)
	}
	if got := DaysToRenewal(NewDate(2026, time.January, 20), today); got != -10 {
		t.Fatalf("DaysToRenewal past = %d, want -10", got)
	}
	if got := DaysToRenewal(Date{}, today); got != 0 {
		t.Fatalf("DaysToRenewal zero = %d, want 0", got)
	}
}

func TestDescribeContract(t *testing.T) {
	t.Parallel()

	end := NewDate(2026, time.December, 31)
	c := Contract{
		StartDate:  NewDate(2026, time.January, 1),
		EndDate:    end,
		ValueCents: 24000_00,
		TermMonths: 12,
		NoticeDays: 30,
	}
	got := DescribeContract(c, NewDate(2026, time.December, 1))
	if got.DaysToRenewal != 30 {
		t.Fatalf("DaysToRenewal = %d", got.DaysToRenewal)
	}
	if got.MonthlyCostCents != 2000_00 || got.AnnualCostCents != 24000_00 {
		t.Fatalf("costs = %d/%d", got.MonthlyCostCents, got.AnnualCostCents)
	}
	if want := NewDate(2026, time.December, 1); !got.NoticeDeadline.Equal(want) {
		t.Fatalf("NoticeDeadline = %s, want %s", got.NoticeDeadline, want)
	}
}

func TestMonthsBetween(t *testing.T) {
	t.Parallel()

	cases := []struct {
		start, end Date
		want       int
	}{
		{NewDate(2026, time.January, 1), NewDate(2026, time.December, 31), 12},
		{NewDate(2026, time.January, 15), NewDate(2026, time.April, 14), 3},
		{NewDate(2026, time.January, 15), NewDate(2026, time.April, 10), 2},
		{NewDate(2026, time.January, 1), NewDate(2026, time.January, 1), 1},
		{NewDate(2026, time.May, 1), NewDate(2026, time.January, 1), 1},
	}
	for _, tc := range cases {
		if got := MonthsBetween(tc.start, tc.end); got != tc.want {
			t.Fatalf("MonthsBetween(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestFormatAndParseMoney(t *testing.T) {
	t.Parallel()

	if got := FormatMoney(123456789, "USD"); got != "$1,234,567.89" {
		t.Fatalf("FormatMoney = %q", got)
	}
	if got := FormatMoney(-5, "eur"); got != "-€0.05" {
		t.Fatalf("FormatMoney negative = %q", got)
	}
	if got := FormatMoney(100, "CHF"); got != "CHF 1.00" {
		t.Fatalf("FormatMoney unknown currency = %q", got)
	}

	parsed := []struct {
		in   string
		want int64
	}{
		{in: "$1,234.5", want: 123450},
		{in: "-5", want: -500},
		{in: ".25", want: 25},
		{in: "7.", want: 700},
		{in: "  12.34 ", want: 1234},
		{in: "", want: 0},
	}
	for _, tt := range parsed {
		got, err := ParseMoney(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}

	for _, in := range []string{"abc", "--5", "1.-5", "-1.-5", "1.234", "1.2a", "+5", "1 000", ".", "-", "1.2.3", "99999999999999999999"} {
		if got, err := ParseMoney(in); err == nil {
			t.Errorf("ParseMoney(%q) = %d, want error", in, got)
		}
	}
}
