package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackspend/stackspend/internal/metrics"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

// RenewalReminders records a reminder for every contract renewing inside the configured
// renewal window. Each (contract, renewal date) pair is reminded at most once, so the job
// is safe to run as often as needed.
type RenewalReminders struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// RenewalScan is the outcome of one pass.
type RenewalScan struct {
	Due      int
	Recorded int
}

func (r *RenewalReminders) RunOnce(ctx context.Context) error {
	_, err := r.Scan(ctx)
	return err
}

func (r *RenewalReminders) Scan(ctx context.Context) (RenewalScan, error) {
	var scan RenewalScan
	if r == nil || r.Store == nil {
		return scan, fmt.Errorf("renewal reminders: %w", ErrNothingToDo)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	settings, err := r.Store.Settings().Get(ctx)
	if err != nil {
		return scan, fmt.Errorf("load settings: %w", err)
	}
	window := settings.RenewalWindowDays
	if window <= 0 {
		window = spend.DefaultSettings().RenewalWindowDays
	}
	today := spend.DateOf(now())

	due, err := r.Store.Contracts().ListRenewingBetween(ctx, today, today.AddDays(window))
	if err != nil {
		return scan, fmt.Errorf("list renewing contracts: %w", err)
	}
	scan.Due = len(due)

	for _, c := range due {
		renewal := c.EffectiveRenewalDate()
		created, err := r.Store.Reminders().Record(ctx, c.ID, renewal)
		if err != nil {
			return scan, fmt.Errorf("record reminder for contract %d: %w", c.ID, err)
		}
		if !created {
			continue
		}
		scan.Recorded++
		metrics.RenewalRemindersTotal.Inc()
		detail := spend.DescribeContract(c, today)
		logger.Info("contract renewal approaching",
			"contract_id", c.ID,
			"application", c.ApplicationName,
			"vendor", c.Vendor,
			"renewal_date", renewal.String(),
			"days_to_renewal", detail.DaysToRenewal,
			"notice_deadline", detail.NoticeDeadline.String(),
			"auto_renew", c.AutoRenew,
			"annual_cost", spend.FormatMoney(detail.AnnualCostCents, c.Currency),
		)
	}
	return scan, nil
}
