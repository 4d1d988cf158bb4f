// Package api serves the JSON REST API under /api/v1. Every route except auth/login needs a
// bearer token; mutating verbs need the admin role.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/http/authn"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInvalidInput = "invalid_input"
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal"

	defaultRenewalDays = 30
	maxRenewalDays     = 3650
	defaultFreshness   = 12 * time.Hour
)

// Error is the body of every non-2xx API response.
type Error struct {
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// API holds the dependencies shared by the REST handlers.
type API struct {
	Store     store.Store
	Tokens    *auth.TokenIssuer
	Discovery *discovery.Syncer
	Logger    *slog.Logger
	Now       func() time.Time
	// Freshness is how recently a source must have reported a discovery for it to count
	// as managed. Zero means defaultFreshness.
	Freshness time.Duration
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *API) today() spend.Date {
	return spend.DateOf(a.now())
}

func (a *API) freshness() time.Duration {
	if a.Freshness > 0 {
		return a.Freshness
	}
	return defaultFreshness
}

// syncer returns the configured syncer, or one with no sources that can still apply
// manual observations.
func (a *API) syncer() *discovery.Syncer {
	if a.Discovery != nil {
		return a.Discovery
	}
	return &discovery.Syncer{Store: a.Store, Logger: a.Logger, Now: a.Now}
}

func (a *API) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Register mounts the API on e. Login is public; everything else is behind RequireBearer.
func (a *API) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/auth/login", a.Login)

	authed := g.Group("", authn.RequireBearer(a.Tokens, a.Store.Users()))
	admin := authn.RequireRole(auth.RoleAdmin)

	authed.GET("/dashboard", a.Dashboard)
	authed.GET("/calendar", a.Calendar)
	authed.GET("/settings", a.GetSettings)
	authed.PUT("/settings", a.UpdateSettings, admin)

	authed.GET("/applications", a.ListApplications)
	authed.POST("/applications", a.CreateApplication, admin)
	authed.GET("/applications/:id", a.GetApplication)
	authed.PUT("/applications/:id", a.UpdateApplication, admin)
	authed.DELETE("/applications/:id", a.DeleteApplication, admin)
	authed.PATCH("/applications/:id/status", a.SetApplicationStatus, admin)
	authed.PATCH("/applications/:id/owner", a.AssignApplicationOwner, admin)
	authed.GET("/applications/:id/usage", a.ApplicationUsage)

	authed.GET("/clients", a.ListClients)
	authed.POST("/clients", a.CreateClient, admin)
	authed.GET("/clients/:id", a.GetClient)
	authed.PUT("/clients/:id", a.UpdateClient, admin)
	authed.DELETE("/clients/:id", a.DeleteClient, admin)

	authed.GET("/categories", a.ListCategories)
	authed.POST("/categories", a.CreateCategory, admin)
	authed.GET("/categories/:id", a.GetCategory)
	authed.PUT("/categories/:id", a.UpdateCategory, admin)
	authed.DELETE("/categories/:id", a.DeleteCategory, admin)
	authed.GET("/subcategories", a.ListSubCategories)
	authed.POST("/subcategories", a.CreateSubCategory, admin)
	authed.PUT("/subcategories/:id", a.UpdateSubCategory, admin)
	authed.DELETE("/subcategories/:id", a.DeleteSubCategory, admin)
	authed.GET("/fields", a.ListFields)
	authed.POST("/fields", a.CreateField, admin)
	authed.PUT("/fields/:id", a.UpdateField, admin)
	authed.DELETE("/fields/:id", a.DeleteField, admin)

	authed.GET("/contracts", a.ListContracts)
	authed.GET("/contracts/renewals", a.ListRenewals)
	authed.POST("/contracts", a.CreateContract, admin)
	authed.GET("/contracts/:id", a.GetContract)
	authed.PUT("/contracts/:id", a.UpdateContract, admin)
	authed.DELETE("/contracts/:id", a.DeleteContract, admin)

	authed.GET("/discoveries", a.ListDiscoveries)
	authed.POST("/discoveries", a.CreateDiscovery, admin)
	authed.GET("/discoveries/:id", a.GetDiscovery)
	authed.POST("/discoveries/:id/adopt", a.AdoptDiscovery, admin)
	authed.POST("/discoveries/:id/ignore", a.IgnoreDiscovery, admin)

	authed.GET("/leads", a.ListLeads)
	authed.POST("/leads", a.CreateLead, admin)
	authed.GET("/leads/:id", a.GetLead)
	authed.PUT("/leads/:id", a.UpdateLead, admin)
	authed.PATCH("/leads/:id/status", a.SetLeadStatus, admin)
	authed.DELETE("/leads/:id", a.DeleteLead, admin)
}

// writeError maps store and validation errors onto the JSON error body.
func (a *API) writeError(c *echo.Context, err error) error {
	var verr *spend.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, Error{Code: CodeInvalidInput, Message: "Validation failed.", Fields: verr.Fields})
	case errors.Is(err, store.ErrInvalidInput):
		return c.JSON(http.StatusUnprocessableEntity, Error{Code: CodeInvalidInput, Message: "Validation failed."})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, Error{Code: CodeNotFound, Message: "Resource not found."})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, Error{Code: CodeConflict, Message: conflictMessage(err)})
	}
	a.logger().Error("api request failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, Error{Code: CodeInternal, Message: "Internal server error."})
}

// conflictMessage keeps the store's description ("category has subcategories: conflict")
// without the sentinel suffix.
func conflictMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+store.ErrConflict.Error())
	if msg == "" || msg == store.ErrConflict.Error() {
		return "The request conflicts with existing data."
	}
	return msg
}

func badRequest(c *echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Error{Code: CodeBadRequest, Message: message})
}

func notFound(c *echo.Context) error {
	return c.JSON(http.StatusNotFound, Error{Code: CodeNotFound, Message: "Resource not found."})
}

func pathID(c *echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryID(c *echo.Context, name string) (int64, bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, errors.New(name + " must be a positive integer")
	}
	return id, true, nil
}

// errResponded is returned once a handler has already written its error response. The
// error handlers skip committed responses, so it only stops the handler.
var errResponded = errors.New("api: response already written")

// bind decodes a JSON body. A malformed body is a 400, not a validation error; the 400 is
// written here and the returned error must be passed straight back to echo.
func bind(c *echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		if werr := badRequest(c, "Request body must be valid JSON."); werr != nil {
			return werr
		}
		return errResponded
	}
	return nil
}

// listParams reads Spring-style paging: page is 0-based, size defaults to 20 and is capped at
// 100, sort is "field,asc|desc".
func listParams(c *echo.Context, filters ...string) store.ListParams {
	page, _ := strconv.Atoi(strings.TrimSpace(c.QueryParam("page")))
	if page < 0 {
		page = 0
	}
	size, _ := strconv.Atoi(strings.TrimSpace(c.QueryParam("size")))
	field, desc := store.ParseSort(c.QueryParam("sort"))
	params := store.ListParams{
		Page:  page + 1,
		Size:  size,
		Query: c.QueryParam("q"),
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

// pageResponse converts a store page to the 0-based wire envelope.
func pageResponse[T any](c *echo.Context, p store.Page[T]) error {
	p.Number--
	if p.Number < 0 {
		p.Number = 0
	}
	return c.JSON(http.StatusOK, p)
}
