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

var fieldTypes = []string{
	spend.FieldTypeText,
	spend.FieldTypeNumber,
	spend.FieldTypeDate,
	spend.FieldTypeSelect,
	spend.FieldTypeBoolean,
}

func (h *Handlers) HandleCategories(c *echo.Context) error {
	return h.renderCategoriesPage(c, http.StatusOK, nil)
}

func (h *Handlers) renderCategoriesPage(c *echo.Context, status int, alert *viewmodels.Alert) error {
	ctx := c.Request().Context()
	layout, err := h.LayoutData(ctx, c, "Categories")
	if err != nil {
		return h.RenderError(c, err)
	}
	tree, err := h.Store.Categories().Tree(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	return h.RenderComponentStatus(c, status, views.CategoriesPage(viewmodels.CategoriesViewData{
		Layout:     layout,
		Tree:       tree,
		FieldTypes: fieldTypes,
		Alert:      alert,
	}))
}

// categoryMutationFailed turns validation and conflict errors into an alert on the page.
func (h *Handlers) categoryMutationFailed(c *echo.Context, thing string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return RenderNotFound(c)
	case errors.Is(err, store.ErrInvalidInput):
		return h.renderCategoriesPage(c, formErrorStatus(c), &viewmodels.Alert{
			Title:       "Invalid " + thing,
			Message:     firstFieldError(err),
			Destructive: true,
		})
	case errors.Is(err, store.ErrConflict):
		return h.renderCategoriesPage(c, formErrorStatus(c), &viewmodels.Alert{
			Title:       "Cannot save " + thing,
			Message:     "It clashes with an existing entry or still has dependent records.",
			Destructive: true,
		})
	}
	return h.failAndRedirect(c, thing, "/categories", err)
}

func firstFieldError(err error) string {
	fields := spend.FieldErrors(err)
	for _, key := range []string{"name", "key", "type", "options", "categoryId"} {
		if msg := fields[key]; msg != "" {
			return msg
		}
	}
	for _, msg := range fields {
		return msg
	}
	return "Check the form and try again."
}

func (h *Handlers) HandleCategoryCreate(c *echo.Context) error {
	cat, err := h.Store.Categories().Create(c.Request().Context(), spend.CategoryInput{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
	})
	if err != nil {
		return h.categoryMutationFailed(c, "category", err)
	}
	return h.successAndRedirect(c, "Category created", cat.Name, "/categories")
}

func (h *Handlers) HandleCategoryDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Categories().Delete(c.Request().Context(), id); err != nil {
		return h.categoryMutationFailed(c, "category", err)
	}
	return h.successAndRedirect(c, "Category deleted", "", "/categories")
}

func (h *Handlers) HandleSubCategoryCreate(c *echo.Context) error {
	categoryID, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	sub, err := h.Store.Categories().CreateSubCategory(c.Request().Context(), spend.SubCategoryInput{
		CategoryID:  categoryID,
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
	})
	if err != nil {
		return h.categoryMutationFailed(c, "subcategory", err)
	}
	return h.successAndRedirect(c, "Subcategory created", sub.Name, "/categories")
}

func (h *Handlers) HandleSubCategoryDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Categories().DeleteSubCategory(c.Request().Context(), id); err != nil {
		return h.categoryMutationFailed(c, "subcategory", err)
	}
	return h.successAndRedirect(c, "Subcategory deleted", "", "/categories")
}

func (h *Handlers) HandleFieldCreate(c *echo.Context) error {
	subID, ok := parseInt64(c.Param("sid"))
	if !ok {
		return RenderNotFound(c)
	}
	var opts []string
	for _, opt := range strings.Split(c.FormValue("options"), ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			opts = append(opts, opt)
		}
	}
	field, err := h.Store.Categories().CreateField(c.Request().Context(), spend.FieldInput{
		SubCategoryID: subID,
		Name:          c.FormValue("name"),
		Type:          c.FormValue("type"),
		Required:      ParseBoolForm(c.FormValue("required")),
		Options:       opts,
	})
	if err != nil {
		return h.categoryMutationFailed(c, "field", err)
	}
	return h.successAndRedirect(c, "Field added", field.Name, "/categories")
}

func (h *Handlers) HandleFieldDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return RenderNotFound(c)
	}
	if err := h.Store.Categories().DeleteField(c.Request().Context(), id); err != nil {
		return h.categoryMutationFailed(c, "field", err)
	}
	return h.successAndRedirect(c, "Field removed", "", "/categories")
}
