package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

var leadStatuses = []string{
	spend.LeadStatusNew,
	spend.LeadStatusContacted,
	spend.LeadStatusQualified,
	spend.LeadStatusLost,
}

func (h *Handlers) HandleLeads(c *echo.Context) error {
	open := strings.EqualFold(strings.TrimSpace(c.QueryParam("open")), "add")
	return h.renderLeadsPage(c, open, viewmodels.LeadForm{}, http.StatusOK)
}

func (h *Handlers) renderLeadsPage(c *echo.Context, openForm bool, form viewmodels.LeadForm, status int) error {
	ctx := c.Request().Context()
	params := listParams(c, "status")
	if params.Sort == "" {
		params.Sort = "created"
		params.Desc = true
	}
	page, err := h.Store.Leads().List(ctx, params)
	if err != nil {
		return h.RenderError(c, err)
	}

	items := make([]viewmodels.LeadRow, 0, len(page.Content))
	for _, l := range page.Content {
		items = append(items, viewmodels.LeadRow{
			ID:      l.ID,
			Name:    l.Name,
			Email:   l.Email,
			Company: l.Company,
			Source:  l.Source,
			Status:  l.Status,
			Created: formatTime(&l.CreatedAt),
		})
	}

	layout, err := h.LayoutData(ctx, c, "Leads")
	if err != nil {
		return h.RenderError(c, err)
	}
	data := viewmodels.LeadsViewData{
		Layout:     layout,
		Items:      items,
		Status:     params.Filter("status"),
		Statuses:   options(leadStatuses, params.Filter("status"), views.Humanize),
		Pagination: paginationFor("/leads", filterValues(c, "status", "sort"), page),
		HasItems:   len(items) > 0,
		Form:       form,
		OpenForm:   openForm,
	}
	return h.RenderComponentStatus(c, status, views.LeadsPage(data))
}

func (h *Handlers) HandleLeadCreate(c *echo.Context) error {
	in := spend.LeadInput{
		Name:    c.FormValue("name"),
		Email:   c.FormValue("email"),
		Company: c.FormValue("company"),
		Source:  c.FormValue("source"),
		Notes:   c.FormValue("notes"),
	}
	in.Normalize()
	form := viewmodels.LeadForm{Name: in.Name, Email: in.Email, Company: in.Company, Source: in.Source, Notes: in.Notes}

	lead, err := h.Store.Leads().Create(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			form.Errors = spend.FieldErrors(err)
			return h.renderLeadsPage(c, true, form, formErrorStatus(c))
		}
		return h.failAndRedirect(c, "lead", "/leads", err)
	}
	return h.successAndRedirect(c, "Lead created", lead.Name, "/leads")
}

func (h *Handlers) HandleLeadStatus(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	lead, err := h.Store.Leads().SetStatus(c.Request().Context(), id, strings.TrimSpace(c.FormValue("status")))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			h.flash(c, "error", "Unknown lead status", "")
			return c.Redirect(http.StatusSeeOther, "/leads")
		}
		return h.failAndRedirect(c, "lead", "/leads", err)
	}
	return h.successAndRedirect(c, "Lead updated", lead.Name+" is now "+strings.ToLower(views.Humanize(lead.Status)), "/leads")
}

func (h *Handlers) HandleLeadDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Leads().Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "lead", "/leads", err)
	}
	return h.successAndRedirect(c, "Lead deleted", "", "/leads")
}
