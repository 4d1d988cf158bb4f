package handlers

import (
	"context"
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

var applicationSorts = []viewmodels.Option{
	{Value: "name", Label: "Name"},
	{Value: "cost,desc", Label: "Highest cost"},
	{Value: "renewal", Label: "Next renewal"},
	{Value: "seats,desc", Label: "Most seats"},
	{Value: "updated,desc", Label: "Recently updated"},
}

func (h *Handlers) HandleApplications(c *echo.Context) error {
	ctx := c.Request().Context()

	params := listParams(c, "status", "category", "owner")
	if params.Sort == "" {
		params.Sort = "name"
	}
	page, err := h.Store.Applications().List(ctx, params)
	if err != nil {
		return h.RenderError(c, err)
	}
	settings, err := h.Store.Settings().Get(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	tree, err := h.Store.Categories().Tree(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	today := h.today()
	items := make([]viewmodels.ApplicationListItem, 0, len(page.Content))
	for _, a := range page.Content {
		soon := false
		if a.RenewalDate != nil {
			days := spend.DaysToRenewal(*a.RenewalDate, today)
			soon = days >= 0 && days <= settings.RenewalWindowDays
		}
		items = append(items, viewmodels.ApplicationListItem{
			ID:          a.ID,
			Name:        a.Name,
			Vendor:      a.Vendor,
			Category:    a.CategoryName,
			Owner:       a.Owner,
			Status:      a.Status,
			MonthlyCost: spend.FormatMoney(a.MonthlyCostCents, a.Currency),
			Seats:       a.Seats,
			Users:       a.Users,
			Renewal:     formatDate(a.RenewalDate),
			RenewalSoon: soon,
			LogoURL:     fmt.Sprintf("/logos/%d", a.ID),
		})
	}

	sortValue := strings.TrimSpace(c.QueryParam("sort"))
	if sortValue == "" {
		sortValue = "name"
	}
	sorts := make([]viewmodels.Option, 0, len(applicationSorts))
	for _, opt := range applicationSorts {
		opt.Selected = opt.Value == sortValue
		sorts = append(sorts, opt)
	}

	data := viewmodels.ApplicationsViewData{
		Query:      params.Query,
		Status:     params.Filter("status"),
		Category:   params.Filter("category"),
		Sort:       sortValue,
		Statuses:   options([]string{spend.AppStatusActive, spend.AppStatusArchived}, params.Filter("status"), views.Humanize),
		Categories: categoryOptions(tree, params.Filter("category")),
		Sorts:      sorts,
		Items:      items,
		HasItems:   len(items) > 0,
		Pagination: paginationFor("/applications", filterValues(c, "q", "status", "category", "owner", "sort"), page),
	}
	if !data.HasItems {
		data.EmptyStateMsg = "No applications match your filters."
		if params.Query == "" && len(params.Filters) == 0 {
			data.EmptyStateMsg = "No applications yet. Add one or adopt a discovered app."
		}
	}

	if swapsInto(c, "applications-results") {
		return h.RenderComponent(c, views.ApplicationsPageResults(data))
	}

	layout, err := h.LayoutData(ctx, c, "Applications")
	if err != nil {
		return h.RenderError(c, err)
	}
	data.Layout = layout
	return h.RenderComponent(c, views.ApplicationsPage(data))
}

func categoryOptions(tree []spend.Category, selected string) []viewmodels.Option {
	out := make([]viewmodels.Option, 0, len(tree))
	for _, cat := range tree {
		id := strconv.FormatInt(cat.ID, 10)
		out = append(out, viewmodels.Option{Value: id, Label: cat.Name, Selected: id == selected})
	}
	return out
}

func subCategoryOptions(tree []spend.Category, selected string) []viewmodels.Option {
	var out []viewmodels.Option
	for _, cat := range tree {
		for _, sub := range cat.SubCategories {
			id := strconv.FormatInt(sub.ID, 10)
			out = append(out, viewmodels.Option{Value: id, Label: cat.Name + " / " + sub.Name, Selected: id == selected})
		}
	}
	return out
}

func (h *Handlers) HandleApplicationNew(c *echo.Context) error {
	form := viewmodels.ApplicationForm{
		Currency:     spend.DefaultCurrency,
		BillingCycle: spend.BillingMonthly,
		Status:       spend.AppStatusActive,
	}
	if settings, err := h.Store.Settings().Get(c.Request().Context()); err == nil {
		form.Currency = settings.Currency
	}
	return h.renderApplicationForm(c, http.StatusOK, form, true)
}

func (h *Handlers) HandleApplicationEdit(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	app, err := h.Store.Applications().Get(c.Request().Context(), id)
	if err != nil {
		return h.renderStoreError(c, err)
	}
	return h.renderApplicationForm(c, http.StatusOK, applicationFormFrom(app), false)
}

func applicationFormFrom(a spend.Application) viewmodels.ApplicationForm {
	form := viewmodels.ApplicationForm{
		ID:              a.ID,
		Name:            a.Name,
		Vendor:          a.Vendor,
		Domain:          a.Domain,
		Owner:           a.Owner,
		LogoURL:         a.LogoURL,
		MonthlyCost:     formatCents(a.MonthlyCostCents),
		Currency:        a.Currency,
		BillingCycle:    a.BillingCycle,
		Seats:           strconv.Itoa(a.Seats),
		Users:           strconv.Itoa(a.Users),
		RenewalDate:     spend.DateString(a.RenewalDate),
		NextPaymentDate: spend.DateString(a.NextPaymentDate),
		Status:          a.Status,
	}
	if a.CategoryID != nil {
		form.CategoryID = strconv.FormatInt(*a.CategoryID, 10)
	}
	if a.SubCategoryID != nil {
		form.SubCategoryID = strconv.FormatInt(*a.SubCategoryID, 10)
	}
	return form
}

func (h *Handlers) renderApplicationForm(c *echo.Context, status int, form viewmodels.ApplicationForm, isNew bool) error {
	ctx := c.Request().Context()
	title := "Add application"
	action := "/applications"
	if !isNew {
		title = "Edit application"
		action = fmt.Sprintf("/applications/%d", form.ID)
	}
	layout, err := h.LayoutData(ctx, c, title)
	if err != nil {
		return h.RenderError(c, err)
	}
	tree, err := h.Store.Categories().Tree(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	data := viewmodels.ApplicationFormViewData{
		Layout:        layout,
		Form:          form,
		IsNew:         isNew,
		Action:        action,
		Categories:    categoryOptions(tree, form.CategoryID),
		SubCategories: subCategoryOptions(tree, form.SubCategoryID),
		BillingCycles: options([]string{spend.BillingMonthly, spend.BillingAnnual}, form.BillingCycle, views.Humanize),
		Statuses:      options([]string{spend.AppStatusActive, spend.AppStatusArchived}, form.Status, views.Humanize),
	}
	return h.RenderComponentStatus(c, status, views.ApplicationFormPage(data))
}

// applicationInputFromForm returns the parsed input, the echoed form and any parse errors.
func applicationInputFromForm(c *echo.Context) (spend.ApplicationInput, viewmodels.ApplicationForm, map[string]string) {
	form := viewmodels.ApplicationForm{
		Name:            c.FormValue("name"),
		Vendor:          c.FormValue("vendor"),
		Domain:          c.FormValue("domain"),
		Owner:           c.FormValue("owner"),
		LogoURL:         c.FormValue("logo_url"),
		CategoryID:      strings.TrimSpace(c.FormValue("category_id")),
		SubCategoryID:   strings.TrimSpace(c.FormValue("subcategory_id")),
		MonthlyCost:     c.FormValue("monthly_cost"),
		Currency:        c.FormValue("currency"),
		BillingCycle:    c.FormValue("billing_cycle"),
		Seats:           c.FormValue("seats"),
		Users:           c.FormValue("users"),
		RenewalDate:     c.FormValue("renewal_date"),
		NextPaymentDate: c.FormValue("next_payment_date"),
		Status:          c.FormValue("status"),
	}
	errs := map[string]string{}
	in := spend.ApplicationInput{
		Name:             form.Name,
		Vendor:           form.Vendor,
		Domain:           form.Domain,
		Owner:            form.Owner,
		LogoURL:          form.LogoURL,
		CategoryID:       parseIDField(form.CategoryID, "categoryId", errs),
		SubCategoryID:    parseIDField(form.SubCategoryID, "subcategoryId", errs),
		MonthlyCostCents: parseMoneyField(form.MonthlyCost, "monthlyCostCents", errs),
		Currency:         form.Currency,
		BillingCycle:     form.BillingCycle,
		Seats:            parseIntField(form.Seats, "seats", errs),
		Users:            parseIntField(form.Users, "users", errs),
		RenewalDate:      parseDateField(form.RenewalDate, "renewalDate", errs),
		NextPaymentDate:  parseDateField(form.NextPaymentDate, "nextPaymentDate", errs),
		Status:           form.Status,
	}
	in.Normalize()
	return in, form, errs
}

func (h *Handlers) HandleApplicationCreate(c *echo.Context) error {
	in, form, errs := applicationInputFromForm(c)
	if err := in.Validate(); err != nil || len(errs) > 0 {
		form.Errors = mergeErrors(errs, err)
		return h.renderApplicationForm(c, formErrorStatus(c), form, true)
	}
	app, err := h.Store.Applications().Create(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			form.Errors = mergeErrors(nil, err)
			return h.renderApplicationForm(c, formErrorStatus(c), form, true)
		}
		return h.failAndRedirect(c, "application", "/applications/new", err)
	}
	return h.successAndRedirect(c, "Application created", app.Name, fmt.Sprintf("/applications/%d", app.ID))
}

func (h *Handlers) HandleApplicationUpdate(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	in, form, errs := applicationInputFromForm(c)
	form.ID = id
	if err := in.Validate(); err != nil || len(errs) > 0 {
		form.Errors = mergeErrors(errs, err)
		return h.renderApplicationForm(c, formErrorStatus(c), form, false)
	}
	app, err := h.Store.Applications().Update(c.Request().Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			form.Errors = mergeErrors(nil, err)
			return h.renderApplicationForm(c, formErrorStatus(c), form, false)
		}
		return h.failAndRedirect(c, "application", fmt.Sprintf("/applications/%d/edit", id), err)
	}
	if h.Logos != nil {
		h.Logos.Forget(app)
	}
	return h.successAndRedirect(c, "Application updated", app.Name, fmt.Sprintf("/applications/%d", app.ID))
}

func (h *Handlers) HandleApplicationShow(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	data, err := h.applicationShowData(c.Request().Context(), c, id)
	if err != nil {
		return h.renderStoreError(c, err)
	}
	return h.RenderComponent(c, views.ApplicationShowPage(data))
}

func (h *Handlers) applicationShowData(ctx context.Context, c *echo.Context, id int64) (viewmodels.ApplicationShowViewData, error) {
	app, err := h.Store.Applications().Get(ctx, id)
	if err != nil {
		return viewmodels.ApplicationShowViewData{}, err
	}
	users, err := h.Store.Applications().ListUsers(ctx, id)
	if err != nil {
		return viewmodels.ApplicationShowViewData{}, err
	}
	contracts, err := h.Store.Contracts().ListByApplication(ctx, id)
	if err != nil {
		return viewmodels.ApplicationShowViewData{}, err
	}
	layout, err := h.LayoutData(ctx, c, app.Name)
	if err != nil {
		return viewmodels.ApplicationShowViewData{}, err
	}

	now := h.now()
	today := spend.DateOf(now)
	usage := spend.UsageBreakdown(app.Seats, users, now)
	savings := spend.Savings(app, usage)

	data := viewmodels.ApplicationShowViewData{
		Layout:       layout,
		ID:           app.ID,
		Name:         app.Name,
		Vendor:       app.Vendor,
		Domain:       app.Domain,
		Category:     app.CategoryName,
		Owner:        app.Owner,
		Status:       app.Status,
		BillingCycle: app.BillingCycle,
		MonthlyCost:  spend.FormatMoney(app.MonthlyCostCents, app.Currency),
		AnnualCost:   spend.FormatMoney(spend.AnnualCost(app), app.Currency),
		Seats:        app.Seats,
		Users:        app.Users,
		Renewal:      formatDate(app.RenewalDate),
		NextPayment:  formatDate(app.NextPaymentDate),
		LogoURL:      fmt.Sprintf("/logos/%d", app.ID),
		Usage: viewmodels.UsageView{
			Active:            usage.Active,
			Moderate:          usage.Moderate,
			Inactive:          usage.Inactive,
			Unassigned:        usage.Unassigned,
			Total:             usage.Total,
			ActivePercent:     usage.Percent(usage.Active),
			ModeratePercent:   usage.Percent(usage.Moderate),
			InactivePercent:   usage.Percent(usage.Inactive),
			UnassignedPercent: usage.Percent(usage.Unassigned),
		},
		Savings: viewmodels.SavingsView{
			ReclaimableSeats: savings.ReclaimableSeats,
			PerSeat:          spend.FormatMoney(savings.PerSeatCents, app.Currency),
			Monthly:          spend.FormatMoney(savings.MonthlyCents, app.Currency),
			Annual:           spend.FormatMoney(savings.AnnualCents, app.Currency),
			Percent:          strconv.FormatFloat(savings.Percent, 'f', 0, 64) + "%",
		},
	}
	for _, ct := range contracts {
		data.Contracts = append(data.Contracts, contractRow(ct, today))
	}
	for _, u := range users {
		data.UserRows = append(data.UserRows, viewmodels.ApplicationUserRow{
			Email:    u.Email,
			Name:     u.DisplayName,
			Source:   u.Source,
			LastSeen: formatTime(u.LastSeenAt),
			Bucket:   spend.UsageBucket(u, now),
		})
	}
	return data, nil
}

func (h *Handlers) HandleApplicationStatus(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	target := fmt.Sprintf("/applications/%d", id)
	app, err := h.Store.Applications().SetStatus(c.Request().Context(), id, c.FormValue("status"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			h.flash(c, "error", "Invalid status", "Status must be active or archived.")
			return c.Redirect(http.StatusSeeOther, target)
		}
		return h.failAndRedirect(c, "application status", target, err)
	}
	title := "Application restored"
	if app.Status == spend.AppStatusArchived {
		title = "Application archived"
	}
	return h.successAndRedirect(c, title, app.Name, target)
}

func (h *Handlers) HandleApplicationOwner(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	ctx := c.Request().Context()
	target := fmt.Sprintf("/applications/%d", id)
	app, err := h.Store.Applications().AssignOwner(ctx, id, c.FormValue("owner"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			data, derr := h.applicationShowData(ctx, c, id)
			if derr != nil {
				return h.renderStoreError(c, derr)
			}
			data.OwnerError = spend.FieldErrors(err)["owner"]
			return h.RenderComponentStatus(c, formErrorStatus(c), views.ApplicationShowPage(data))
		}
		return h.failAndRedirect(c, "owner", target, err)
	}
	desc := app.Owner
	if desc == "" {
		desc = "Owner cleared"
	}
	return h.successAndRedirect(c, "Owner updated", desc, target)
}

func (h *Handlers) HandleApplicationDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Applications().Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "application", fmt.Sprintf("/applications/%d", id), err)
	}
	return h.successAndRedirect(c, "Application deleted", "", "/applications")
}
