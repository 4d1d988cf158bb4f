package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store/memstore"
)

func TestRenewalRemindersRecordOncePerRenewal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.May, 4, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := memstore.New(memstore.WithClock(clock))

	app, err := st.Applications().Create(ctx, spend.ApplicationInput{Name: "Figma"})
	if err != nil {
		t.Fatalf("Create app: %v", err)
	}
	today := spend.DateOf(now)
	mk := func(endInDays int, status string) {
		t.Helper()
		_, err := st.Contracts().Create(ctx, spend.ContractInput{
			ApplicationID: app.ID,
			Status:        status,
			StartDate:     today.AddDays(endInDays - 364),
			EndDate:       today.AddDays(endInDays),
			ValueCents:    120_000,
			TermMonths:    12,
			NoticeDays:    30,
		})
		if err != nil {
			t.Fatalf("Create contract: %v", err)
		}
	}
	mk(10, spend.ContractStatusActive)
	mk(45, spend.ContractStatusActive)
	mk(20, spend.ContractStatusCancelled)
	mk(200, spend.ContractStatusActive)

	job := &jobs.RenewalReminders{Store: st, Now: clock}
	scan, err := job.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scan.Due != 2 || scan.Recorded != 2 {
		t.Fatalf("first scan = %+v, want 2 due and 2 recorded", scan)
	}

	scan, err = job.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if scan.Due != 2 || scan.Recorded != 0 {
		t.Fatalf("second scan = %+v, want nothing recorded", scan)
	}

	if _, err := st.Settings().Update(ctx, spend.SettingsInput{OrgName: "Acme", RenewalWindowDays: 365}); err != nil {
		t.Fatalf("Settings.Update: %v", err)
	}
	scan, err = job.Scan(ctx)
	if err != nil {
		t.Fatalf("third Scan: %v", err)
	}
	if scan.Recorded != 1 {
		t.Fatalf("widened window recorded %d, want 1", scan.Recorded)
	}
}
