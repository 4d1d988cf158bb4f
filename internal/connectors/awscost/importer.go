// Package awscost imports monthly AWS spend from Cost Explorer.
package awscost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/metrics"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	costMetric     = "UnblendedCost"
	lookbackMonths = 12
	dateLayout     = "2006-01-02"
)

// ErrApplicationNotFound means the configured application does not exist yet.
var ErrApplicationNotFound = errors.New("aws cost application not found")

type costExplorerAPI interface {
	GetCostAndUsage(context.Context, *costexplorer.GetCostAndUsageInput, ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Importer stores one cost record per month on the named application.
type Importer struct {
	api         costExplorerAPI
	store       store.Store
	application string
	logger      *slog.Logger
	now         func() time.Time
}

var _ jobs.Runner = (*Importer)(nil)

func New(cfg aws.Config, st store.Store, application string, logger *slog.Logger) *Importer {
	return newImporter(costexplorer.NewFromConfig(cfg), st, application, logger)
}

func newImporter(api costExplorerAPI, st store.Store, application string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		api:         api,
		store:       st,
		application: strings.TrimSpace(application),
		logger:      logger,
		now:         time.Now,
	}
}

func (i *Importer) RunOnce(ctx context.Context) error {
	_, err := i.Import(ctx)
	return err
}

// Import fetches the last twelve complete months plus the current one and upserts them.
// It returns the number of records written.
func (i *Importer) Import(ctx context.Context) (int, error) {
	if i == nil || i.store == nil || i.application == "" {
		return 0, fmt.Errorf("aws cost import: %w", jobs.ErrNothingToDo)
	}
	app, err := i.store.Applications().FindByDomainOrName(ctx, "", i.application)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %q", ErrApplicationNotFound, i.application)
		}
		return 0, fmt.Errorf("find application: %w", err)
	}

	today := spend.DateOf(i.now())
	start := today.MonthStart().AddMonths(-lookbackMonths)
	end := today.AddDays(1)

	results, err := i.fetch(ctx, start, end)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, r := range results {
		rec, ok, err := costRecord(app.ID, r)
		if err != nil {
			return written, err
		}
		if !ok {
			continue
		}
		if err := i.store.Costs().Upsert(ctx, rec); err != nil {
			return written, fmt.Errorf("store cost for %s: %w", rec.Month, err)
		}
		written++
		metrics.CostImportRecordsTotal.Inc()
	}
	i.logger.Info("aws cost import finished",
		"application", app.Name,
		"records", written,
		"from", start.String(),
		"to", end.String(),
	)
	return written, nil
}

func (i *Importer) fetch(ctx context.Context, start, end spend.Date) ([]cetypes.ResultByTime, error) {
	var out []cetypes.ResultByTime
	var token *string
	for {
		resp, err := i.api.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(start.Format(dateLayout)),
				End:   aws.String(end.Format(dateLayout)),
			},
			Granularity:   cetypes.GranularityMonthly,
			Metrics:       []string{costMetric},
			NextPageToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("get cost and usage: %w", err)
		}
		out = append(out, resp.ResultsByTime...)
		if resp.NextPageToken == nil || aws.ToString(resp.NextPageToken) == "" {
			break
		}
		token = resp.NextPageToken
	}
	return out, nil
}

// costRecord converts one monthly result. Results without the metric are skipped.
func costRecord(appID int64, r cetypes.ResultByTime) (spend.CostRecord, bool, error) {
	if r.TimePeriod == nil {
		return spend.CostRecord{}, false, nil
	}
	metric, ok := r.Total[costMetric]
	if !ok || metric.Amount == nil {
		return spend.CostRecord{}, false, nil
	}
	month, err := spend.ParseDate(aws.ToString(r.TimePeriod.Start))
	if err != nil {
		return spend.CostRecord{}, false, fmt.Errorf("parse period start: %w", err)
	}
	cents, err := amountCents(aws.ToString(metric.Amount))
	if err != nil {
		return spend.CostRecord{}, false, fmt.Errorf("parse amount for %s: %w", month, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(aws.ToString(metric.Unit)))
	if currency == "" {
		currency = "USD"
	}
	return spend.CostRecord{
		ApplicationID: appID,
		Month:         month.MonthStart(),
		AmountCents:   cents,
		Currency:      currency,
		Source:        spend.CostSourceAWS,
	}, true, nil
}

// amountCents rounds Cost Explorer's high-precision decimal strings to the nearest cent.
func amountCents(raw string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(v * 100)), nil
}
