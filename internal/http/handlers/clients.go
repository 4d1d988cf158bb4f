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

type clientsPageOptions struct {
	openForm bool
	form     viewmodels.ClientForm
	status   int
}

func (h *Handlers) HandleClients(c *echo.Context) error {
	opts := clientsPageOptions{status: http.StatusOK}
	open := strings.ToLower(strings.TrimSpace(c.QueryParam("open")))
	if open == "add" {
		opts.openForm = true
		opts.form.Active = true
	}
	if id, ok := parseInt64(c.QueryParam("edit")); ok && id > 0 {
		client, err := h.Store.Clients().Get(c.Request().Context(), id)
		if err != nil {
			return h.renderStoreError(c, err)
		}
		opts.openForm = true
		opts.form = viewmodels.ClientForm{
			ID:          client.ID,
			Name:        client.Name,
			Email:       client.Email,
			Company:     client.Company,
			Phone:       client.Phone,
			Address:     client.Address,
			Description: client.Description,
			Active:      client.Active,
		}
	}
	return h.renderClientsPage(c, opts)
}

func (h *Handlers) renderClientsPage(c *echo.Context, opts clientsPageOptions) error {
	ctx := c.Request().Context()

	params := listParams(c, "active")
	page, err := h.Store.Clients().List(ctx, params)
	if err != nil {
		return h.RenderError(c, err)
	}

	items := make([]viewmodels.ClientRow, 0, len(page.Content))
	for _, cl := range page.Content {
		items = append(items, viewmodels.ClientRow{
			ID:      cl.ID,
			Name:    cl.Name,
			Email:   cl.Email,
			Company: cl.Company,
			Phone:   cl.Phone,
			Active:  cl.Active,
		})
	}
	data := viewmodels.ClientsViewData{
		Items:      items,
		Query:      params.Query,
		HasItems:   len(items) > 0,
		Pagination: paginationFor("/clients", filterValues(c, "q", "active"), page),
		Form:       opts.form,
		OpenForm:   opts.openForm,
	}
	if !data.HasItems {
		data.EmptyStateMsg = "No clients match your search."
		if params.Query == "" {
			data.EmptyStateMsg = "No clients yet."
		}
	}

	if swapsInto(c, "clients-results") {
		return h.RenderComponent(c, views.ClientsPageResults(data))
	}

	layout, err := h.LayoutData(ctx, c, "Clients")
	if err != nil {
		return h.RenderError(c, err)
	}
	data.Layout = layout
	return h.RenderComponentStatus(c, opts.status, views.ClientsPage(data))
}

func clientInputFromForm(c *echo.Context) (spend.ClientInput, viewmodels.ClientForm) {
	in := spend.ClientInput{
		Name:        c.FormValue("name"),
		Email:       c.FormValue("email"),
		Company:     c.FormValue("company"),
		Phone:       c.FormValue("phone"),
		Address:     c.FormValue("address"),
		Description: c.FormValue("description"),
		Active:      ParseBoolForm(c.FormValue("active")),
	}
	in.Normalize()
	form := viewmodels.ClientForm{
		Name:        in.Name,
		Email:       in.Email,
		Company:     in.Company,
		Phone:       in.Phone,
		Address:     in.Address,
		Description: in.Description,
		Active:      in.Active,
	}
	return in, form
}

// HandleClientCreate saves nothing when validation fails; the form comes back with field errors.
func (h *Handlers) HandleClientCreate(c *echo.Context) error {
	in, form := clientInputFromForm(c)
	if err := in.Validate(); err != nil {
		form.Errors = spend.FieldErrors(err)
		return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
	}
	client, err := h.Store.Clients().Create(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidInput):
			form.Errors = spend.FieldErrors(err)
			return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		case errors.Is(err, store.ErrConflict):
			form.Errors = map[string]string{"email": "A client with this email already exists."}
			return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		}
		return h.failAndRedirect(c, "client", "/clients", err)
	}
	return h.successAndRedirect(c, "Client created", client.Name, "/clients")
}

func (h *Handlers) HandleClientUpdate(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	in, form := clientInputFromForm(c)
	form.ID = id
	if err := in.Validate(); err != nil {
		form.Errors = spend.FieldErrors(err)
		return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
	}
	client, err := h.Store.Clients().Update(c.Request().Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return RenderNotFound(c)
		case errors.Is(err, store.ErrInvalidInput):
			form.Errors = spend.FieldErrors(err)
			return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		case errors.Is(err, store.ErrConflict):
			form.Errors = map[string]string{"email": "A client with this email already exists."}
			return h.renderClientsPage(c, clientsPageOptions{openForm: true, form: form, status: formErrorStatus(c)})
		}
		return h.failAndRedirect(c, "client", "/clients", err)
	}
	return h.successAndRedirect(c, "Client updated", client.Name, "/clients")
}

func (h *Handlers) HandleClientDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Clients().Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.failAndRedirect(c, "client", "/clients", err)
	}
	return h.successAndRedirect(c, "Client deleted", "", "/clients")
}
