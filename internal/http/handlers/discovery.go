package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/jobs"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

var discoverySources = []string{
	discovery.SourceOkta,
	discovery.SourceGoogleWorkspace,
	discovery.SourceAWSIdentityCenter,
	discovery.SourceManual,
}

func (h *Handlers) discoveryRow(d spend.Discovery) viewmodels.DiscoveryRow {
	posture := discovery.Assess(d, h.now(), h.discoveryFreshness())
	users := d.UserCount
	if users < len(d.Users) {
		users = len(d.Users)
	}
	row := viewmodels.DiscoveryRow{
		ID:              d.ID,
		Name:            d.DisplayName,
		Domain:          d.Domain,
		Vendor:          d.VendorName,
		Source:          d.Source,
		SourceLabel:     discovery.SourceDisplayName(d.Source),
		State:           d.State,
		Users:           users,
		ActiveUsers:     posture.ActiveUsers,
		LastSeen:        formatTime(&d.LastSeenAt),
		Managed:         d.Managed(),
		ApplicationName: d.ApplicationName,
		ManagedState:    posture.ManagedState,
		RiskLevel:       posture.RiskLevel,
		Scopes:          d.Scopes,
	}
	if d.ApplicationID != nil {
		row.ApplicationID = *d.ApplicationID
	}
	return row
}

func (h *Handlers) HandleDiscovery(c *echo.Context) error {
	ctx := c.Request().Context()

	params := listParams(c, "state", "source", "managed")
	if params.Sort == "" {
		params.Sort = "last_seen"
		params.Desc = true
	}
	page, err := h.Store.Discoveries().List(ctx, params)
	if err != nil {
		return h.RenderError(c, err)
	}
	counts, err := h.Store.Discoveries().CountByState(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	items := make([]viewmodels.DiscoveryRow, 0, len(page.Content))
	for _, d := range page.Content {
		items = append(items, h.discoveryRow(d))
	}
	data := viewmodels.DiscoveryViewData{
		Items:      items,
		Query:      params.Query,
		State:      params.Filter("state"),
		Source:     params.Filter("source"),
		States:     options([]string{spend.DiscoveryStateNew, spend.DiscoveryStateAdopted, spend.DiscoveryStateIgnored}, params.Filter("state"), views.Humanize),
		Sources:    options(discoverySources, params.Filter("source"), discovery.SourceDisplayName),
		Counts:     counts,
		HasItems:   len(items) > 0,
		Pagination: paginationFor("/discovery", filterValues(c, "q", "state", "source", "managed", "sort"), page),
	}
	if !data.HasItems {
		data.EmptyStateMsg = "No discovered applications match your filters."
	}

	if swapsInto(c, "discovery-results") {
		return h.RenderComponent(c, views.DiscoveryPageResults(data))
	}

	layout, err := h.LayoutData(ctx, c, "Discovery")
	if err != nil {
		return h.RenderError(c, err)
	}
	data.Layout = layout
	return h.RenderComponent(c, views.DiscoveryPage(data))
}

func (h *Handlers) HandleDiscoveryAdopt(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	app, err := h.Store.Discoveries().Adopt(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "discovery", "/discovery", err)
	}
	return h.successAndRedirect(c, "Application adopted", app.Name, "/applications/"+itoa64(app.ID))
}

func (h *Handlers) HandleDiscoveryIgnore(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	d, err := h.Store.Discoveries().SetState(c.Request().Context(), id, spend.DiscoveryStateIgnored)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "discovery", "/discovery", err)
	}
	return h.successAndRedirect(c, "Discovery ignored", d.DisplayName, "/discovery")
}

// HandleResync runs one discovery sync inline and reports the outcome on the connectors page.
func (h *Handlers) HandleResync(c *echo.Context) error {
	if h.Syncer == nil {
		h.flash(c, "warning", "No discovery sources configured", "")
		return c.Redirect(http.StatusSeeOther, "/settings/connectors")
	}
	if err := h.Syncer.RunOnce(c.Request().Context()); err != nil {
		c.Logger().Error("manual discovery sync failed", "error", err)
		msg := "Some sources failed. Check the logs for details."
		switch {
		case errors.Is(err, jobs.ErrAlreadyRunning):
			msg = "A sync is already running."
		case errors.Is(err, jobs.ErrNothingToDo):
			msg = "No discovery sources are configured."
		}
		h.flash(c, "error", "Sync failed", msg)
		return c.Redirect(http.StatusSeeOther, "/settings/connectors")
	}
	return h.successAndRedirect(c, "Sync complete", "", "/settings/connectors")
}
