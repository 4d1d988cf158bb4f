package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	dashboardRenewalDays   = 30
	dashboardSpendMonths   = 12
	dashboardTopCategories = 5
	dashboardDiscoveries   = 5
)

func (h *Handlers) HandleDashboard(c *echo.Context) error {
	ctx := c.Request().Context()
	layout, err := h.LayoutData(ctx, c, "Dashboard")
	if err != nil {
		return h.RenderError(c, err)
	}

	settings, err := h.Store.Settings().Get(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	apps, err := h.Store.Applications().All(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	contracts, err := h.Store.Contracts().All(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	today := h.today()
	costs, err := h.Store.Costs().ListSince(ctx, today.MonthStart().AddMonths(1-dashboardSpendMonths))
	if err != nil {
		return h.RenderError(c, err)
	}
	renewing, err := h.Store.Contracts().ListRenewingBetween(ctx, today, today.AddDays(dashboardRenewalDays))
	if err != nil {
		return h.RenderError(c, err)
	}
	fresh, err := h.Store.Discoveries().List(ctx, store.ListParams{
		Size:    dashboardDiscoveries,
		Sort:    "last_seen",
		Desc:    true,
		Filters: map[string]string{"state": spend.DiscoveryStateNew},
	})
	if err != nil {
		return h.RenderError(c, err)
	}

	currency := settings.Currency
	summary := spend.Summarize(apps, contracts, currency, today, dashboardRenewalDays)
	monthlyHint := spend.FormatMoney(summary.AnnualCents, currency) + " a year"
	if len(summary.OtherCurrencies) > 0 {
		monthlyHint += ", plus " + summary.OtherCurrencies.Format() + " a month not converted"
	}

	data := viewmodels.DashboardViewData{
		Layout: layout,
		KPIs: []viewmodels.DashboardKPI{
			{Label: "Monthly spend", Value: spend.FormatMoney(summary.MonthlyCents, currency), Hint: monthlyHint},
			{Label: "Active applications", Value: itoa(summary.ActiveApplications)},
			{Label: "Seats in use", Value: itoa(summary.TotalUsers) + " / " + itoa(summary.TotalSeats)},
			{Label: "Renewing in 30 days", Value: itoa(summary.RenewingSoon), Hint: itoa(summary.ActiveContracts) + " active contracts"},
		},
		Spend:         spendBars(spend.MonthlySpend(dashboardSpendMonths, today, currency, apps, contracts, costs), currency),
		TopCategories: categoryShares(spend.TopCategories(apps, currency, dashboardTopCategories), summary.MonthlyCents, currency),
	}

	for _, ct := range renewing {
		renewal := ct.EffectiveRenewalDate()
		data.Renewals = append(data.Renewals, viewmodels.RenewalRow{
			ContractID:    ct.ID,
			ApplicationID: ct.ApplicationID,
			Application:   ct.ApplicationName,
			Vendor:        ct.Vendor,
			Date:          formatDate(&renewal),
			DaysToRenewal: spend.DaysToRenewal(renewal, today),
			Value:         spend.FormatMoney(ct.ValueCents, ct.Currency),
			AutoRenew:     ct.AutoRenew,
		})
	}
	for _, d := range fresh.Content {
		data.NewDiscoveries = append(data.NewDiscoveries, h.discoveryRow(d))
	}

	return h.RenderComponent(c, views.DashboardPage(data))
}

func spendBars(points []spend.MonthPoint, currency string) []viewmodels.SpendBar {
	var max int64
	for _, p := range points {
		if p.Cents > max {
			max = p.Cents
		}
	}
	out := make([]viewmodels.SpendBar, 0, len(points))
	for _, p := range points {
		height := 0
		if max > 0 {
			height = int(p.Cents * 100 / max)
		}
		out = append(out, viewmodels.SpendBar{
			Label:  p.Month.Format("Jan"),
			Value:  spend.FormatMoney(p.Cents, currency),
			Height: height,
		})
	}
	return out
}

func categoryShares(cats []spend.CategorySpend, total int64, currency string) []viewmodels.CategoryShare {
	out := make([]viewmodels.CategoryShare, 0, len(cats))
	for _, cat := range cats {
		percent := 0
		if total > 0 {
			percent = int(cat.MonthlyCents * 100 / total)
		}
		out = append(out, viewmodels.CategoryShare{
			Name:    cat.Name,
			Value:   spend.FormatMoney(cat.MonthlyCents, currency),
			Count:   cat.Count,
			Percent: percent,
		})
	}
	return out
}

// HandleHealthz reports whether the store answers.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	if err := h.Store.Ping(c.Request().Context()); err != nil {
		return c.String(http.StatusServiceUnavailable, "unavailable")
	}
	return c.String(http.StatusOK, "ok")
}
