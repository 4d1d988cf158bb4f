package spend

import (
	"errors"
	"testing"
	"time"
)

func TestClientInputValidateEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		email   string
		wantErr bool
	}{
		{"jane@example.com", false},
		{"  Jane@Example.COM ", false},
		{"", true},
		{"not-an-email", true},
		{"jane@localhost", true},
		{"Jane <jane@example.com>", true},
		{"jane@@example.com", true},
	}
	for _, tc := range cases {
		in := ClientInput{Name: "Jane", Email: tc.email}
		in.Normalize()
		err := in.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("email %q: err=%v wantErr=%v", tc.email, err, tc.wantErr)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("email %q: error does not match ErrInvalidInput", tc.email)
		}
		if FieldErrors(err)["email"] == "" {
			t.Fatalf("email %q: missing field error, got %v", tc.email, FieldErrors(err))
		}
	}
}

func TestClientInputPhone(t *testing.T) {
	t.Parallel()

	ok := ClientInput{Name: "A", Email: "a@example.com", Phone: "+1 (555) 010-2000"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
	bad := ClientInput{Name: "A", Email: "a@example.com", Phone: "call me"}
	if FieldErrors(bad.Validate())["phone"] == "" {
		t.Fatalf("invalid phone accepted")
	}
}

func TestFieldInputNormalize(t *testing.T) {
	t.Parallel()

	in := FieldInput{SubCategoryID: 1, Name: "Contract Owner", Type: "Select", Options: []string{" a ", "", "b", "a"}}
	in.Normalize()
	if in.Key != "contract_owner" {
		t.Fatalf("Key = %q", in.Key)
	}
	if len(in.Options) != 2 || in.Options[0] != "a" || in.Options[1] != "b" {
		t.Fatalf("Options = %#v", in.Options)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	empty := FieldInput{SubCategoryID: 1, Name: "Tier", Type: FieldTypeSelect}
	empty.Normalize()
	if FieldErrors(empty.Validate())["options"] == "" {
		t.Fatalf("select without options accepted")
	}

	text := FieldInput{SubCategoryID: 1, Name: "Notes", Options: []string{"x"}}
	text.Normalize()
	if text.Options != nil {
		t.Fatalf("text field kept options %v", text.Options)
	}
}

func TestContractInputDefaults(t *testing.T) {
	t.Parallel()

	in := ContractInput{
		ApplicationID: 3,
		StartDate:     NewDate(2026, time.January, 1),
		EndDate:       NewDate(2026, time.December, 31),
		ValueCents:    1000,
	}
	in.Normalize()
	if in.RenewalDate == nil || !in.RenewalDate.Equal(in.EndDate) {
		t.Fatalf("RenewalDate = %v, want end date", in.RenewalDate)
	}
	if in.TermMonths != 12 || in.Status != ContractStatusActive || in.Currency != "USD" {
		t.Fatalf("defaults = %+v", in)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	reversed := ContractInput{ApplicationID: 3, StartDate: NewDate(2026, time.May, 1), EndDate: NewDate(2026, time.January, 1), TermMonths: 1}
	reversed.Normalize()
	if FieldErrors(reversed.Validate())["endDate"] == "" {
		t.Fatalf("end before start accepted")
	}
}

func TestSettingsInputBounds(t *testing.T) {
	t.Parallel()

	in := SettingsInput{OrgName: "Acme", RenewalWindowDays: 400, FiscalYearStartMonth: 13}
	in.Normalize()
	fields := FieldErrors(in.Validate())
	if fields["renewalWindowDays"] == "" || fields["fiscalYearStartMonth"] == "" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Contract Owner":   "contract_owner",
		"  SSO -- Enabled": "sso_enabled",
		"Tier 2!":          "tier_2",
		"":                 "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2026-02-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	b, _ := d.MarshalJSON()
	if string(b) != `"2026-02-28"` {
		t.Fatalf("MarshalJSON = %s", b)
	}
	var back Date
	if err := back.UnmarshalJSON(b); err != nil || !back.Equal(d) {
		t.Fatalf("UnmarshalJSON = %v, %v", back, err)
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
	if z, _ := (Date{}).MarshalJSON(); string(z) != "null" {
		t.Fatalf("zero date = %s", z)
	}
}
