package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/spend"
)

func (a *API) ListClients(c *echo.Context) error {
	page, err := a.Store.Clients().List(c.Request().Context(), listParams(c, "active"))
	if err != nil {
		return a.writeError(c, err)
	}
	return pageResponse(c, page)
}

func (a *API) GetClient(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	client, err := a.Store.Clients().Get(c.Request().Context(), id)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

func (a *API) CreateClient(c *echo.Context) error {
	in := spend.ClientInput{Active: true}
	if err := bind(c, &in); err != nil {
		return err
	}
	client, err := a.Store.Clients().Create(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, client)
}

func (a *API) UpdateClient(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.ClientInput
	if err := bind(c, &in); err != nil {
		return err
	}
	client, err := a.Store.Clients().Update(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

func (a *API) DeleteClient(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Clients().Delete(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories returns a page of categories, or the full tree with ?tree=1.
func (a *API) ListCategories(c *echo.Context) error {
	ctx := c.Request().Context()
	if tree := strings.TrimSpace(c.QueryParam("tree")); tree == "1" || tree == "true" {
		cats, err := a.Store.Categories().Tree(ctx)
		if err != nil {
			return a.writeError(c, err)
		}
		return c.JSON(http.StatusOK, cats)
	}
	page, err := a.Store.Categories().List(ctx, listParams(c))
	if err != nil {
		return a.writeError(c, err)
	}
	return pageResponse(c, page)
}

func (a *API) GetCategory(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	ctx := c.Request().Context()
	cat, err := a.Store.Categories().Get(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}
	subs, err := a.Store.Categories().ListSubCategories(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}
	cat.SubCategories = subs
	return c.JSON(http.StatusOK, cat)
}

func (a *API) CreateCategory(c *echo.Context) error {
	var in spend.CategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	cat, err := a.Store.Categories().Create(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (a *API) UpdateCategory(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.CategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	cat, err := a.Store.Categories().Update(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, cat)
}

// DeleteCategory refuses with 409 while subcategories or applications still reference it.
func (a *API) DeleteCategory(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Categories().Delete(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) ListSubCategories(c *echo.Context) error {
	categoryID, ok, err := queryID(c, "categoryId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "categoryId is required")
	}
	subs, err := a.Store.Categories().ListSubCategories(c.Request().Context(), categoryID)
	if err != nil {
		return a.writeError(c, err)
	}
	if subs == nil {
		subs = []spend.SubCategory{}
	}
	return c.JSON(http.StatusOK, subs)
}

func (a *API) CreateSubCategory(c *echo.Context) error {
	var in spend.SubCategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	sub, err := a.Store.Categories().CreateSubCategory(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (a *API) UpdateSubCategory(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.SubCategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	sub, err := a.Store.Categories().UpdateSubCategory(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (a *API) DeleteSubCategory(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Categories().DeleteSubCategory(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) ListFields(c *echo.Context) error {
	subID, ok, err := queryID(c, "subcategoryId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "subcategoryId is required")
	}
	fields, err := a.Store.Categories().ListFields(c.Request().Context(), subID)
	if err != nil {
		return a.writeError(c, err)
	}
	if fields == nil {
		fields = []spend.Field{}
	}
	return c.JSON(http.StatusOK, fields)
}

func (a *API) CreateField(c *echo.Context) error {
	var in spend.FieldInput
	if err := bind(c, &in); err != nil {
		return err
	}
	field, err := a.Store.Categories().CreateField(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, field)
}

func (a *API) UpdateField(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.FieldInput
	if err := bind(c, &in); err != nil {
		return err
	}
	field, err := a.Store.Categories().UpdateField(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, field)
}

func (a *API) DeleteField(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Categories().DeleteField(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) ListLeads(c *echo.Context) error {
	page, err := a.Store.Leads().List(c.Request().Context(), listParams(c, "status"))
	if err != nil {
		return a.writeError(c, err)
	}
	return pageResponse(c, page)
}

func (a *API) GetLead(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	lead, err := a.Store.Leads().Get(c.Request().Context(), id)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

func (a *API) CreateLead(c *echo.Context) error {
	var in spend.LeadInput
	if err := bind(c, &in); err != nil {
		return err
	}
	lead, err := a.Store.Leads().Create(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, lead)
}

func (a *API) UpdateLead(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.LeadInput
	if err := bind(c, &in); err != nil {
		return err
	}
	lead, err := a.Store.Leads().Update(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

func (a *API) SetLeadStatus(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	lead, err := a.Store.Leads().SetStatus(c.Request().Context(), id, strings.ToLower(strings.TrimSpace(body.Status)))
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

func (a *API) DeleteLead(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Leads().Delete(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
