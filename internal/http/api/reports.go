package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/spend"
)

const (
	dashboardSpendMonths   = 12
	dashboardTopCategories = 5
)

type dashboard struct {
	Currency       string                 `json:"currency"`
	Summary        spend.Summary          `json:"summary"`
	MonthlySpend   []spend.MonthPoint     `json:"monthlySpend"`
	TopCategories  []spend.CategorySpend  `json:"topCategories"`
	Renewals       []spend.ContractDetail `json:"renewals"`
	NewDiscoveries int64                  `json:"newDiscoveries"`
}

// Dashboard returns the spend summary, the last twelve months of spend and the renewals
// inside the configured window.
func (a *API) Dashboard(c *echo.Context) error {
	ctx := c.Request().Context()
	settings, err := a.Store.Settings().Get(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	apps, err := a.Store.Applications().All(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	contracts, err := a.Store.Contracts().All(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	today := a.today()
	costs, err := a.Store.Costs().ListSince(ctx, today.MonthStart().AddMonths(1-dashboardSpendMonths))
	if err != nil {
		return a.writeError(c, err)
	}
	window := settings.RenewalWindowDays
	if window <= 0 {
		window = spend.DefaultSettings().RenewalWindowDays
	}
	renewing, err := a.Store.Contracts().ListRenewingBetween(ctx, today, today.AddDays(window))
	if err != nil {
		return a.writeError(c, err)
	}
	counts, err := a.Store.Discoveries().CountByState(ctx)
	if err != nil {
		return a.writeError(c, err)
	}

	out := dashboard{
		Currency:       settings.Currency,
		Summary:        spend.Summarize(apps, contracts, settings.Currency, today, window),
		MonthlySpend:   spend.MonthlySpend(dashboardSpendMonths, today, settings.Currency, apps, contracts, costs),
		TopCategories:  spend.TopCategories(apps, settings.Currency, dashboardTopCategories),
		Renewals:       make([]spend.ContractDetail, 0, len(renewing)),
		NewDiscoveries: counts[spend.DiscoveryStateNew],
	}
	for _, ct := range renewing {
		out.Renewals = append(out.Renewals, spend.DescribeContract(ct, today))
	}
	return c.JSON(http.StatusOK, out)
}

// Calendar returns the renewal and payment calendar for ?year (default: this year).
func (a *API) Calendar(c *echo.Context) error {
	year := a.now().Year()
	if raw := strings.TrimSpace(c.QueryParam("year")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1970 || n > 9999 {
			return c.JSON(http.StatusUnprocessableEntity, Error{
				Code:    CodeInvalidInput,
				Message: "Validation failed.",
				Fields:  map[string]string{"year": "Must be a four-digit year."},
			})
		}
		year = n
	}
	ctx := c.Request().Context()
	contracts, err := a.Store.Contracts().All(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	apps, err := a.Store.Applications().All(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	settings, err := a.Store.Settings().Get(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, spend.RenewalCalendar(year, settings.Currency, contracts, apps))
}

func (a *API) GetSettings(c *echo.Context) error {
	settings, err := a.Store.Settings().Get(c.Request().Context())
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (a *API) UpdateSettings(c *echo.Context) error {
	ctx := c.Request().Context()
	current, err := a.Store.Settings().Get(ctx)
	if err != nil {
		return a.writeError(c, err)
	}
	// Omitted fields keep their stored values.
	in := spend.SettingsInput{
		OrgName:              current.OrgName,
		Currency:             current.Currency,
		RenewalWindowDays:    current.RenewalWindowDays,
		FiscalYearStartMonth: current.FiscalYearStartMonth,
	}
	if err := bind(c, &in); err != nil {
		return err
	}
	settings, err := a.Store.Settings().Update(ctx, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}
