// Package handlers contains the console's HTTP handlers split by domain.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/http/authn"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/logo"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"

	defaultDiscoveryFreshness = 12 * time.Hour
)

// SyncRunner is the interface for triggering manual discovery syncs.
type SyncRunner interface {
	RunOnce(context.Context) error
}

// Handlers groups all console handlers and shared dependencies.
type Handlers struct {
	Cfg      config.Config
	Store    store.Store
	Sessions *scs.SessionManager
	Logos    *logo.Resolver
	Syncer   SyncRunner
	Now      func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) today() spend.Date {
	return spend.DateOf(h.now())
}

func (h *Handlers) discoveryFreshness() time.Duration {
	if h.Cfg.DiscoverySyncInterval > 0 {
		return 2 * h.Cfg.DiscoverySyncInterval
	}
	return defaultDiscoveryFreshness
}

// LayoutData builds the common layout data for page rendering.
func (h *Handlers) LayoutData(ctx context.Context, c *echo.Context, title string) (viewmodels.LayoutData, error) {
	principal, ok := authn.PrincipalFromContext(c)
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)

	settings, err := h.Store.Settings().Get(ctx)
	if err != nil {
		return viewmodels.LayoutData{}, err
	}
	counts, err := h.Store.Discoveries().CountByState(ctx)
	if err != nil {
		return viewmodels.LayoutData{}, err
	}

	return viewmodels.LayoutData{
		Title:          title,
		CSRFToken:      csrfToken,
		UserEmail:      principal.Email,
		UserRole:       principal.Role,
		IsAdmin:        ok && principal.IsAdmin(),
		OrgName:        settings.OrgName,
		Toast:          h.popFlash(c),
		ActivePath:     c.Request().URL.Path,
		NewDiscoveries: counts[spend.DiscoveryStateNew],
	}, nil
}

// RenderComponent renders a templ component as the response.
func (h *Handlers) RenderComponent(c *echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request().Context(), c.Response()); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

// RenderComponentStatus renders a component with a non-200 status, e.g. a form with field errors.
func (h *Handlers) RenderComponentStatus(c *echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(status)
	if err := component.Render(c.Request().Context(), c.Response()); err != nil {
		c.Logger().Error("render failed after header write", "error", err)
	}
	return nil
}

// RenderError logs err and answers 500 with only a reference the operator can search logs for.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	req := c.Request()
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	c.Logger().Error("console request failed",
		"request_id", requestID,
		"method", req.Method,
		"path", req.URL.Path,
		"ip", c.RealIP(),
		"error", err,
	)
	parts := []string{"Internal server error."}
	if requestID != "" {
		parts = append(parts, "Reference: "+requestID+".")
	}
	parts = append(parts, "Code: "+InternalErrorCode+".")
	return c.String(http.StatusInternalServerError, strings.Join(parts, " "))
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

// RenderForbidden shows the signed-in user a 403 page inside the console layout.
func (h *Handlers) RenderForbidden(c *echo.Context) error {
	layout, err := h.LayoutData(c.Request().Context(), c, "Access denied")
	if err != nil {
		return h.RenderError(c, err)
	}
	return h.RenderComponentStatus(c, http.StatusForbidden, views.ForbiddenPage(layout))
}

// renderStoreError maps store.ErrNotFound to 404 and everything else to the generic error page.
func (h *Handlers) renderStoreError(c *echo.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return RenderNotFound(c)
	}
	return h.RenderError(c, err)
}

// failAndRedirect logs err, sets an error toast naming what failed and redirects to target.
func (h *Handlers) failAndRedirect(c *echo.Context, thing, target string, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	c.Logger().Error("console mutation failed",
		"request_id", requestID,
		"path", c.Request().URL.Path,
		"thing", thing,
		"error", err,
	)
	h.flash(c, "error", fmt.Sprintf("Failed to save %s. Please try again.", thing), "")
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *Handlers) successAndRedirect(c *echo.Context, title, description, target string) error {
	h.flash(c, "success", title, description)
	return c.Redirect(http.StatusSeeOther, target)
}

// listParams reads page, q, sort and the named filters from the query string.
func listParams(c *echo.Context, filters ...string) store.ListParams {
	field, desc := store.ParseSort(c.QueryParam("sort"))
	params := store.ListParams{
		Page:  pageParam(c),
		Size:  store.DefaultPageSize,
		Query: strings.TrimSpace(c.QueryParam("q")),
		Sort:  field,
		Desc:  desc,
	}
	for _, key := range filters {
		if v := strings.TrimSpace(c.QueryParam(key)); v != "" {
			params = params.WithFilter(key, v)
		}
	}
	return params.Normalized()
}

// filterValues returns the query values that list links should preserve.
func filterValues(c *echo.Context, keys ...string) url.Values {
	out := url.Values{}
	for _, key := range keys {
		if v := strings.TrimSpace(c.QueryParam(key)); v != "" {
			out.Set(key, v)
		}
	}
	return out
}

func options(values []string, selected string, label func(string) string) []viewmodels.Option {
	out := make([]viewmodels.Option, 0, len(values))
	for _, v := range values {
		out = append(out, viewmodels.Option{Value: v, Label: label(v), Selected: v == selected})
	}
	return out
}

func formatDate(d *spend.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatCents(cents int64) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}

// ParseBoolForm parses a form value as a boolean.
func ParseBoolForm(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseIntField parses an optional integer form field, recording a message in errs on failure.
func parseIntField(raw, field string, errs map[string]string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs[field] = "Enter a whole number."
		return 0
	}
	return n
}

func parseIDField(raw, field string, errs map[string]string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, ok := parseInt64(raw)
	if !ok || n <= 0 {
		errs[field] = "Pick a valid option."
		return nil
	}
	return &n
}

func parseMoneyField(raw, field string, errs map[string]string) int64 {
	cents, err := spend.ParseMoney(raw)
	if err != nil {
		errs[field] = "Enter an amount like 1234.50."
		return 0
	}
	return cents
}

func parseDateField(raw, field string, errs map[string]string) *spend.Date {
	d, err := spend.ParseDatePtr(raw)
	if err != nil {
		errs[field] = "Enter a date as YYYY-MM-DD."
		return nil
	}
	return d
}

// mergeErrors combines form parse errors with validation errors; parse errors win.
func mergeErrors(parse map[string]string, err error) map[string]string {
	out := map[string]string{}
	for k, v := range spend.FieldErrors(err) {
		out[k] = v
	}
	for k, v := range parse {
		out[k] = v
	}
	return out
}
