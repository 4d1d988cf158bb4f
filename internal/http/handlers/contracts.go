package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

var contractStatuses = []string{
	spend.ContractStatusActive,
	spend.ContractStatusPending,
	spend.ContractStatusExpired,
	spend.ContractStatusCancelled,
}

var renewalWindows = []viewmodels.Option{
	{Value: "30", Label: "Next 30 days"},
	{Value: "60", Label: "Next 60 days"},
	{Value: "90", Label: "Next 90 days"},
	{Value: "180", Label: "Next 180 days"},
	{Value: "365", Label: "Next 12 months"},
}

type contractsPageOptions struct {
	openForm bool
	form     viewmodels.ContractForm
	status   int
}

func contractRow(ct spend.Contract, today spend.Date) viewmodels.ContractRow {
	detail := spend.DescribeContract(ct, today)
	renewal := ct.EffectiveRenewalDate()
	notice := detail.NoticeDeadline
	return viewmodels.ContractRow{
		ID:             ct.ID,
		ApplicationID:  ct.ApplicationID,
		Application:    ct.ApplicationName,
		Vendor:         ct.Vendor,
		Status:         ct.Status,
		StartDate:      formatDate(&ct.StartDate),
		EndDate:        formatDate(&ct.EndDate),
		Renewal:        formatDate(&renewal),
		DaysToRenewal:  detail.DaysToRenewal,
		Value:          spend.FormatMoney(ct.ValueCents, ct.Currency),
		Monthly:        spend.FormatMoney(detail.MonthlyCostCents, ct.Currency),
		NoticeDeadline: formatDate(&notice),
		AutoRenew:      ct.AutoRenew,
	}
}

func (h *Handlers) HandleContracts(c *echo.Context) error {
	opts := contractsPageOptions{status: http.StatusOK}
	if strings.EqualFold(strings.TrimSpace(c.QueryParam("open")), "add") {
		opts.openForm = true
		opts.form = viewmodels.ContractForm{
			ApplicationID: strings.TrimSpace(c.QueryParam("application")),
			Status:        spend.ContractStatusActive,
			Currency:      spend.DefaultCurrency,
			TermMonths:    "12",
			NoticeDays:    "30",
		}
	}
	if id, ok := parseInt64(c.QueryParam("edit")); ok && id > 0 {
		ct, err := h.Store.Contracts().Get(c.Request().Context(), id)
		if err != nil {
			return h.renderStoreError(c, err)
		}
		opts.openForm = true
		opts.form = viewmodels.ContractForm{
			ID:            ct.ID,
			ApplicationID: strconv.FormatInt(ct.ApplicationID, 10),
			Vendor:        ct.Vendor,
			Status:        ct.Status,
			StartDate:     ct.StartDate.String(),
			EndDate:       ct.EndDate.String(),
			RenewalDate:   spend.DateString(ct.RenewalDate),
			Value:         formatCents(ct.ValueCents),
			Currency:      ct.Currency,
			TermMonths:    strconv.Itoa(ct.TermMonths),
			NoticeDays:    strconv.Itoa(ct.NoticeDays),
			AutoRenew:     ct.AutoRenew,
			Notes:         ct.Notes,
		}
	}
	return h.renderContractsPage(c, opts)
}

func (h *Handlers) renderContractsPage(c *echo.Context, opts contractsPageOptions) error {
	ctx := c.Request().Context()

	params := listParams(c, "status", "application", "renewing_within")
	if params.Sort == "" {
		params.Sort = "renewal"
	}
	page, err := h.Store.Contracts().List(ctx, params)
	if err != nil {
		return h.RenderError(c, err)
	}

	today := h.today()
	items := make([]viewmodels.ContractRow, 0, len(page.Content))
	for _, ct := range page.Content {
		items = append(items, contractRow(ct, today))
	}

	window := params.Filter("renewing_within")
	windows := make([]viewmodels.Option, 0, len(renewalWindows))
	for _, w := range renewalWindows {
		w.Selected = w.Value == window
		windows = append(windows, w)
	}

	data := viewmodels.ContractsViewData{
		Items:          items,
		Status:         params.Filter("status"),
		RenewingWithin: window,
		Statuses:       options(contractStatuses, params.Filter("status"), views.Humanize),
		Windows:        windows,
		HasItems:       len(items) > 0,
		Pagination:     paginationFor("/procurement", filterValues(c, "status", "application", "renewing_within", "sort"), page),
		Form:           opts.form,
		OpenForm:       opts.openForm,
	}
	if !data.HasItems {
		data.EmptyStateMsg = "No contracts match your filters."
	}

	if swapsInto(c, "contracts-results") {
		return h.RenderComponent(c, views.ContractsPageResults(data))
	}

	if opts.openForm {
		apps, err := h.Store.Applications().All(ctx)
		if err != nil {
			return h.RenderError(c, err)
		}
		for _, a := range apps {
			id := strconv.FormatInt(a.ID, 10)
			data.Applications = append(data.Applications, viewmodels.Option{Value: id, Label: a.Name, Selected: id == opts.form.ApplicationID})
		}
	}

	layout, err := h.LayoutData(ctx, c, "Procurement")
	if err != nil {
		return h.RenderError(c, err)
	}
	data.Layout = layout
	return h.RenderComponentStatus(c, opts.status, views.ContractsPage(data))
}

func contractInputFromForm(c *echo.Context) (spend.ContractInput, viewmodels.ContractForm, map[string]string) {
	form := viewmodels.ContractForm{
		ApplicationID: strings.TrimSpace(c.FormValue("application_id")),
		Vendor:        c.FormValue("vendor"),
		Status:        c.FormValue("status"),
		StartDate:     c.FormValue("start_date"),
		EndDate:       c.FormValue("end_date"),
		RenewalDate:   c.FormValue("renewal_date"),
		Value:         c.FormValue("value"),
		Currency:      c.FormValue("currency"),
		TermMonths:    c.FormValue("term_months"),
		NoticeDays:    c.FormValue("notice_days"),
		AutoRenew:     ParseBoolForm(c.FormValue("auto_renew")),
		Notes:         c.FormValue("notes"),
	}
	errs := map[string]string{}
	in := spend.ContractInput{
		Vendor:      form.Vendor,
		Status:      form.Status,
		RenewalDate: parseDateField(form.RenewalDate, "renewalDate", errs),
		ValueCents:  parseMoneyField(form.Value, "valueCents", errs),
		Currency:    form.Currency,
		TermMonths:  parseIntField(form.TermMonths, "termMonths", errs),
		AutoRenew:   form.AutoRenew,
		NoticeDays:  parseIntField(form.NoticeDays, "noticeDays", errs),
		Notes:       form.Notes,
	}
	if id := parseIDField(form.ApplicationID, "applicationId", errs); id != nil {
		in.ApplicationID = *id
	}
	if d := parseDateField(form.StartDate, "startDate", errs); d != nil {
		in.StartDate = *d
	}
	if d := parseDateField(form.EndDate, "endDate", errs); d != nil {
		in.EndDate = *d
	}
	in.Normalize()
	return in, form, errs
}

func (h *Handlers) HandleContractCreate(c *echo.Context) error {
	in, form, errs := contractInputFromForm(c)
	if err := in.Validate(); err != nil || len(errs) > 0 {
		form.Errors = mergeErrors(errs, err)
		return h.renderContractsPage(c, contractsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
	}
	ct, err := h.Store.Contracts().Create(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) || errors.Is(err, store.ErrNotFound) {
			form.Errors = mergeErrors(nil, err)
			if errors.Is(err, store.ErrNotFound) {
				form.Errors["applicationId"] = "Application does not exist."
			}
			return h.renderContractsPage(c, contractsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		}
		return h.failAndRedirect(c, "contract", "/procurement", err)
	}
	return h.successAndRedirect(c, "Contract created", ct.ApplicationName, "/procurement")
}

func (h *Handlers) HandleContractUpdate(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	in, form, errs := contractInputFromForm(c)
	form.ID = id
	if err := in.Validate(); err != nil || len(errs) > 0 {
		form.Errors = mergeErrors(errs, err)
		return h.renderContractsPage(c, contractsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
	}
	ct, err := h.Store.Contracts().Update(c.Request().Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			form.Errors = mergeErrors(nil, err)
			return h.renderContractsPage(c, contractsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		}
		return h.failAndRedirect(c, "contract", "/procurement", err)
	}
	return h.successAndRedirect(c, "Contract updated", ct.ApplicationName, "/procurement")
}

func (h *Handlers) HandleContractDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Contracts().Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "contract", "/procurement", err)
	}
	return h.successAndRedirect(c, "Contract deleted", "", "/procurement")
}

func (h *Handlers) HandleCalendar(c *echo.Context) error {
	ctx := c.Request().Context()
	year := h.today().Year()
	if raw := strings.TrimSpace(c.QueryParam("year")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 1970 && parsed <= 9999 {
			year = parsed
		}
	}

	contracts, err := h.Store.Contracts().All(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	apps, err := h.Store.Applications().All(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	settings, err := h.Store.Settings().Get(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	layout, err := h.LayoutData(ctx, c, "Renewal calendar")
	if err != nil {
		return h.RenderError(c, err)
	}

	cal := spend.RenewalCalendar(year, settings.Currency, contracts, apps)
	data := viewmodels.CalendarViewData{
		Layout:   layout,
		Year:     year,
		PrevYear: year - 1,
		NextYear: year + 1,
		Total:    moneyTotal(cal.TotalCents, cal.Currency, cal.OtherCurrencies),
	}
	for _, m := range cal.Months {
		month := viewmodels.CalendarMonthView{
			Name:  m.Month.String(),
			Total: moneyTotal(m.TotalCents, cal.Currency, m.OtherCurrencies),
		}
		for _, e := range m.Entries {
			date := e.Date
			month.Entries = append(month.Entries, viewmodels.CalendarEntryView{
				Name:      e.Name,
				Vendor:    e.Vendor,
				Date:      formatDate(&date),
				Cost:      spend.FormatMoney(e.MonthlyCostCents, e.Currency),
				Kind:      e.Kind,
				Href:      fmt.Sprintf("/applications/%d", e.ApplicationID),
				AutoRenew: e.AutoRenew,
			})
			data.Count++
		}
		data.Months = append(data.Months, month)
	}
	return h.RenderComponent(c, views.CalendarPage(data))
}

// moneyTotal renders a total with amounts in other currencies appended unconverted.
func moneyTotal(cents int64, currency string, others spend.CurrencyTotals) string {
	out := spend.FormatMoney(cents, currency)
	if len(others) > 0 {
		out += " + " + others.Format()
	}
	return out
}
