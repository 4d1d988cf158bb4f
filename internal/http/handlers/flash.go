package handlers

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
)

// flashSessionKey holds at most one pending toast, shown by the next rendered page.
const flashSessionKey = "flash"

var toastCategories = map[string]bool{"success": true, "error": true, "warning": true, "info": true}

func cleanToast(t viewmodels.ToastViewData) (viewmodels.ToastViewData, bool) {
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	if !toastCategories[t.Category] {
		t.Category = "info"
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	return t, t.Title != "" || t.Description != ""
}

func (h *Handlers) flash(c *echo.Context, category, title, description string) {
	if h.Sessions == nil {
		return
	}
	toast, ok := cleanToast(viewmodels.ToastViewData{Category: category, Title: title, Description: description})
	if !ok {
		return
	}
	raw, err := json.Marshal(toast)
	if err != nil {
		return
	}
	h.Sessions.Put(c.Request().Context(), flashSessionKey, string(raw))
}

func (h *Handlers) popFlash(c *echo.Context) *viewmodels.ToastViewData {
	if h.Sessions == nil {
		return nil
	}
	raw := h.Sessions.PopString(c.Request().Context(), flashSessionKey)
	if raw == "" {
		return nil
	}
	var toast viewmodels.ToastViewData
	if json.Unmarshal([]byte(raw), &toast) != nil {
		return nil
	}
	if toast, ok := cleanToast(toast); ok {
		return &toast
	}
	return nil
}
