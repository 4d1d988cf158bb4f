package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/logo"
	"github.com/stackspend/stackspend/internal/store"
)

// HandleLogo redirects to the first reachable logo for an application and falls back to an
// initials badge.
func (h *Handlers) HandleLogo(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	app, err := h.Store.Applications().Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}

	l := logo.Fallback(app.Name)
	if h.Logos != nil {
		l = h.Logos.Resolve(c.Request().Context(), app)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	if !l.Fallback && l.URL != "" {
		return c.Redirect(http.StatusFound, l.URL)
	}
	return c.Blob(http.StatusOK, "image/svg+xml", l.SVG())
}
