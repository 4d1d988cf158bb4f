package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const recentReminderLimit = 20

func monthOptions(selected int) []viewmodels.Option {
	out := make([]viewmodels.Option, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, viewmodels.Option{
			Value:    strconv.Itoa(m),
			Label:    time.Month(m).String(),
			Selected: m == selected,
		})
	}
	return out
}

func settingsFormFrom(s spend.Settings) viewmodels.SettingsForm {
	return viewmodels.SettingsForm{
		OrgName:              s.OrgName,
		Currency:             s.Currency,
		RenewalWindowDays:    strconv.Itoa(s.RenewalWindowDays),
		FiscalYearStartMonth: strconv.Itoa(s.FiscalYearStartMonth),
	}
}

func (h *Handlers) HandleSettings(c *echo.Context) error {
	settings, err := h.Store.Settings().Get(c.Request().Context())
	if err != nil {
		return h.RenderError(c, err)
	}
	return h.renderSettingsPage(c, settingsFormFrom(settings), http.StatusOK)
}

func (h *Handlers) renderSettingsPage(c *echo.Context, form viewmodels.SettingsForm, status int) error {
	ctx := c.Request().Context()
	reminders, err := h.reminderRows(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	layout, err := h.LayoutData(ctx, c, "Settings")
	if err != nil {
		return h.RenderError(c, err)
	}
	month, _ := strconv.Atoi(form.FiscalYearStartMonth)
	return h.RenderComponentStatus(c, status, views.SettingsPage(viewmodels.SettingsViewData{
		Layout:    layout,
		Form:      form,
		Months:    monthOptions(month),
		Reminders: reminders,
	}))
}

// reminderRows joins recent reminders to their contract's application name. Reminders for
// deleted contracts are still listed.
func (h *Handlers) reminderRows(ctx context.Context) ([]viewmodels.ReminderRow, error) {
	reminders, err := h.Store.Reminders().ListRecent(ctx, recentReminderLimit)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	out := make([]viewmodels.ReminderRow, 0, len(reminders))
	for _, r := range reminders {
		name, seen := names[r.ContractID]
		if !seen {
			name = "Contract #" + itoa64(r.ContractID)
			ct, err := h.Store.Contracts().Get(ctx, r.ContractID)
			switch {
			case err == nil:
				name = ct.Vendor
				if ct.ApplicationName != "" {
					name = ct.ApplicationName
				}
			case !errors.Is(err, store.ErrNotFound):
				return nil, err
			}
			names[r.ContractID] = name
		}
		renewal := r.RenewalDate
		out = append(out, viewmodels.ReminderRow{
			ContractID:  r.ContractID,
			Application: name,
			RenewalDate: formatDate(&renewal),
			CreatedAt:   formatTime(&r.CreatedAt),
		})
	}
	return out, nil
}

func (h *Handlers) HandleSettingsUpdate(c *echo.Context) error {
	errs := map[string]string{}
	in := spend.SettingsInput{
		OrgName:              c.FormValue("org_name"),
		Currency:             c.FormValue("currency"),
		RenewalWindowDays:    parseIntField(c.FormValue("renewal_window_days"), "renewalWindowDays", errs),
		FiscalYearStartMonth: parseIntField(c.FormValue("fiscal_year_start_month"), "fiscalYearStartMonth", errs),
	}
	form := viewmodels.SettingsForm{
		OrgName:              c.FormValue("org_name"),
		Currency:             c.FormValue("currency"),
		RenewalWindowDays:    c.FormValue("renewal_window_days"),
		FiscalYearStartMonth: c.FormValue("fiscal_year_start_month"),
	}
	if len(errs) > 0 {
		form.Errors = errs
		return h.renderSettingsPage(c, form, formErrorStatus(c))
	}

	saved, err := h.Store.Settings().Update(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			form.Errors = spend.FieldErrors(err)
			return h.renderSettingsPage(c, form, formErrorStatus(c))
		}
		return h.failAndRedirect(c, "settings", "/settings", err)
	}
	return h.successAndRedirect(c, "Settings saved", saved.OrgName, "/settings")
}
