package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stackspend/stackspend/internal/fixtures"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

var testNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newSeeded(t *testing.T) *Store {
	t.Helper()
	s, rep, err := NewSeeded(context.Background(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	if rep.Applications == 0 || rep.Contracts == 0 || rep.Clients == 0 {
		t.Fatalf("seed report looks empty: %+v", rep)
	}
	return s
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	ds, err := fixtures.Demo(testNow)
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	rep, err := fixtures.Apply(ctx, s, ds)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if got := rep.Total() - rep.Costs; got != 0 {
		t.Fatalf("second Apply created %d rows, want 0 (%+v)", got, rep)
	}

	settings, err := s.Settings().Get(ctx)
	if err != nil {
		t.Fatalf("Settings.Get: %v", err)
	}
	if settings.OrgName != "Acme Corp" {
		t.Fatalf("OrgName = %q, want Acme Corp", settings.OrgName)
	}
}

func TestApplicationListPagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	all, err := s.Applications().All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	total := len(all)

	for _, size := range []int{1, 3, 5, 20} {
		pages := store.TotalPages(int64(total), size)
		for p := 1; p <= pages+1; p++ {
			page, err := s.Applications().List(ctx, store.ListParams{Page: p, Size: size})
			if err != nil {
				t.Fatalf("List(page=%d,size=%d): %v", p, size, err)
			}
			want := total - (p-1)*size
			if want > size {
				want = size
			}
			if want < 0 {
				want = 0
			}
			if len(page.Content) != want {
				t.Fatalf("List(page=%d,size=%d) len = %d, want %d", p, size, len(page.Content), want)
			}
			if page.TotalPages != pages || page.TotalElements != int64(total) {
				t.Fatalf("List(page=%d,size=%d) totals = (%d, %d), want (%d, %d)", p, size, page.TotalPages, page.TotalElements, pages, total)
			}
		}
	}
}

func TestApplicationFiltersAndSort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	archived, err := s.Applications().List(ctx, store.ListParams{}.WithFilter("status", spend.AppStatusArchived))
	if err != nil {
		t.Fatalf("List archived: %v", err)
	}
	if len(archived.Content) != 1 || archived.Content[0].Name != "Shutterstock" {
		t.Fatalf("archived = %+v, want only Shutterstock", archived.Content)
	}

	byCost, err := s.Applications().List(ctx, store.ListParams{Sort: "cost", Desc: true, Size: 100})
	if err != nil {
		t.Fatalf("List by cost: %v", err)
	}
	for i := 1; i < len(byCost.Content); i++ {
		if byCost.Content[i-1].MonthlyCostCents < byCost.Content[i].MonthlyCostCents {
			t.Fatalf("cost order broken at %d: %d < %d", i, byCost.Content[i-1].MonthlyCostCents, byCost.Content[i].MonthlyCostCents)
		}
	}

	found, err := s.Applications().List(ctx, store.ListParams{Query: "FIG"})
	if err != nil {
		t.Fatalf("List query: %v", err)
	}
	if len(found.Content) != 1 || found.Content[0].Name != "Figma" {
		t.Fatalf("query FIG = %+v", found.Content)
	}
}

func TestApplicationStatusAndOwnerPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	app, err := s.Applications().FindByDomainOrName(ctx, "", "miro")
	if err != nil {
		t.Fatalf("FindByDomainOrName: %v", err)
	}
	if _, err := s.Applications().SetStatus(ctx, app.ID, "archived"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := s.Applications().AssignOwner(ctx, app.ID, "  ops@acme.example "); err != nil {
		t.Fatalf("AssignOwner: %v", err)
	}
	got, err := s.Applications().Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != spend.AppStatusArchived || got.Owner != "ops@acme.example" {
		t.Fatalf("persisted = (%q, %q)", got.Status, got.Owner)
	}

	if _, err := s.Applications().SetStatus(ctx, app.ID, "paused"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("SetStatus(paused) err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Applications().Get(ctx, 999999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestApplicationDeleteWithContractsConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	app, err := s.Applications().FindByDomainOrName(ctx, "figma.com", "")
	if err != nil {
		t.Fatalf("FindByDomainOrName: %v", err)
	}
	if err := s.Applications().Delete(ctx, app.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Delete err = %v, want ErrConflict", err)
	}
}

func TestClientValidationAndUniqueEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(WithClock(fixedClock))

	_, err := s.Clients().Create(ctx, spend.ClientInput{Name: "Bad", Email: "not-an-email"})
	if got := spend.FieldErrors(err)["email"]; got == "" {
		t.Fatalf("Create with bad email err = %v, want email field error", err)
	}
	page, _ := s.Clients().List(ctx, store.ListParams{})
	if page.TotalElements != 0 {
		t.Fatalf("invalid client was stored")
	}

	c, err := s.Clients().Create(ctx, spend.ClientInput{Name: "Ada", Email: "Ada@Example.com", Active: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", c.Email)
	}
	if _, err := s.Clients().Create(ctx, spend.ClientInput{Name: "Ada 2", Email: "ada@example.com"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate email err = %v, want ErrConflict", err)
	}

	inactive, _ := s.Clients().List(ctx, store.ListParams{}.WithFilter("active", "0"))
	if inactive.TotalElements != 0 {
		t.Fatalf("active=0 returned %d clients", inactive.TotalElements)
	}
}

func TestCategoryDeleteGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	cat, err := s.Categories().Create(ctx, spend.CategoryInput{Name: "Design"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Categories().Create(ctx, spend.CategoryInput{Name: "design"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("case-insensitive duplicate err = %v", err)
	}
	sub, err := s.Categories().CreateSubCategory(ctx, spend.SubCategoryInput{CategoryID: cat.ID, Name: "Prototyping"})
	if err != nil {
		t.Fatalf("CreateSubCategory: %v", err)
	}
	field, err := s.Categories().CreateField(ctx, spend.FieldInput{SubCategoryID: sub.ID, Name: "Editor seats", Type: "number"})
	if err != nil {
		t.Fatalf("CreateField: %v", err)
	}
	if field.Key != "editor_seats" {
		t.Fatalf("field key = %q", field.Key)
	}

	if err := s.Categories().Delete(ctx, cat.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Delete category with subcategories err = %v", err)
	}
	if err := s.Categories().DeleteSubCategory(ctx, sub.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Delete subcategory with fields err = %v", err)
	}
	if err := s.Categories().DeleteField(ctx, field.ID); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
	if err := s.Categories().DeleteSubCategory(ctx, sub.ID); err != nil {
		t.Fatalf("DeleteSubCategory: %v", err)
	}
	if err := s.Categories().Delete(ctx, cat.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestReminderRecordedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)

	all, err := s.Contracts().All(ctx)
	if err != nil || len(all) == 0 {
		t.Fatalf("All contracts: %v (%d)", err, len(all))
	}
	c := all[0]
	created, err := s.Reminders().Record(ctx, c.ID, c.EffectiveRenewalDate())
	if err != nil || !created {
		t.Fatalf("first Record = (%v, %v), want (true, nil)", created, err)
	}
	created, err = s.Reminders().Record(ctx, c.ID, c.EffectiveRenewalDate())
	if err != nil || created {
		t.Fatalf("second Record = (%v, %v), want (false, nil)", created, err)
	}
	created, err = s.Reminders().Record(ctx, c.ID, c.EffectiveRenewalDate().AddMonths(12))
	if err != nil || !created {
		t.Fatalf("next term Record = (%v, %v), want (true, nil)", created, err)
	}
	recent, _ := s.Reminders().ListRecent(ctx, 10)
	if len(recent) != 2 {
		t.Fatalf("ListRecent len = %d, want 2", len(recent))
	}
}

func TestRenewingBetweenOrdersAndSkipsCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSeeded(t)
	today := spend.DateOf(testNow)

	got, err := s.Contracts().ListRenewingBetween(ctx, today.AddDays(-3650), today.AddDays(3650))
	if err != nil {
		t.Fatalf("ListRenewingBetween: %v", err)
	}
	for i, c := range got {
		if c.Status == spend.ContractStatusCancelled {
			t.Fatalf("cancelled contract %d listed", c.ID)
		}
		if i > 0 && got[i-1].EffectiveRenewalDate().After(c.EffectiveRenewalDate()) {
			t.Fatalf("renewals out of order at %d", i)
		}
	}
}

func TestDiscoveryUpsertMergesAndAdopts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(WithClock(fixedClock))

	earlier := testNow.Add(-48 * time.Hour)
	later := testNow.Add(-time.Hour)
	first, err := s.Discoveries().Upsert(ctx, spend.DiscoveryObservation{
		CanonicalKey: "domain:canva.com",
		DisplayName:  "Canva",
		Domain:       "canva.com",
		Source:       "google_workspace",
		ObservedAt:   later,
		Users:        []spend.DiscoveredUser{{Email: "a@acme.example", LastSeenAt: &earlier}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := s.Discoveries().Upsert(ctx, spend.DiscoveryObservation{
		CanonicalKey: "domain:canva.com",
		Source:       "okta",
		ObservedAt:   earlier,
		Users: []spend.DiscoveredUser{
			{Email: "A@acme.example", LastSeenAt: &later},
			{Email: "b@acme.example"},
		},
	})
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second row")
	}
	if !second.LastSeenAt.Equal(later) {
		t.Fatalf("LastSeenAt moved backwards: %v", second.LastSeenAt)
	}
	wantEmails := []string{"a@acme.example", "b@acme.example"}
	var gotEmails []string
	for _, u := range second.Users {
		gotEmails = append(gotEmails, u.Email)
	}
	if diff := cmp.Diff(wantEmails, gotEmails); diff != "" {
		t.Fatalf("merged users mismatch (-want +got):\n%s", diff)
	}
	if second.Users[0].LastSeenAt == nil || !second.Users[0].LastSeenAt.Equal(later) {
		t.Fatalf("user last seen not advanced: %+v", second.Users[0])
	}

	app, err := s.Discoveries().Adopt(ctx, first.ID)
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	if app.Name != "Canva" || app.Domain != "canva.com" || app.Users != 2 {
		t.Fatalf("adopted app = %+v", app)
	}
	adopted, _ := s.Discoveries().Get(ctx, first.ID)
	if adopted.State != spend.DiscoveryStateAdopted || !adopted.Managed() || adopted.ApplicationName != "Canva" {
		t.Fatalf("discovery after adopt = %+v", adopted)
	}

	again, err := s.Discoveries().Adopt(ctx, first.ID)
	if err != nil || again.ID != app.ID {
		t.Fatalf("second Adopt = (%d, %v), want same application %d", again.ID, err, app.ID)
	}
	counts, _ := s.Discoveries().CountByState(ctx)
	if counts[spend.DiscoveryStateAdopted] != 1 || counts[spend.DiscoveryStateNew] != 0 {
		t.Fatalf("CountByState = %v", counts)
	}
}

func TestCostUpsertReplacesAmount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(WithClock(fixedClock))
	app, err := s.Applications().Create(ctx, spend.ApplicationInput{Name: "AWS"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	month := spend.NewDate(2026, time.February, 14)
	for _, amount := range []int64{100, 250} {
		if err := s.Costs().Upsert(ctx, spend.CostRecord{ApplicationID: app.ID, Month: month, AmountCents: amount, Source: spend.CostSourceAWS}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	got, err := s.Costs().ListSince(ctx, spend.NewDate(2026, time.January, 1))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	want := []spend.CostRecord{{
		ApplicationID: app.ID,
		Month:         spend.NewDate(2026, time.February, 1),
		AmountCents:   250,
		Currency:      spend.DefaultCurrency,
		Source:        spend.CostSourceAWS,
	}}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b spend.Date) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("costs mismatch (-want +got):\n%s", diff)
	}
}

func TestUsersCountAdmins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	if _, err := s.Users().Create(ctx, store.CreateUserParams{Email: "Admin@Example.com", PasswordHash: "x", Role: "admin", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Users().Create(ctx, store.CreateUserParams{Email: "admin@example.com", Role: "viewer"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate user err = %v", err)
	}
	u, err := s.Users().GetByEmail(ctx, "ADMIN@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if err := s.Users().UpdateRole(ctx, u.ID, "viewer"); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	n, _ := s.Users().CountActiveAdmins(ctx)
	if n != 0 {
		t.Fatalf("CountActiveAdmins = %d, want 0", n)
	}
}
