package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/http/api"
	"github.com/stackspend/stackspend/internal/http/authn"
	"github.com/stackspend/stackspend/internal/http/handlers"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/logo"
	"github.com/stackspend/stackspend/internal/metrics"
	"github.com/stackspend/stackspend/internal/store"
)

// Options carries the dependencies of the HTTP server.
type Options struct {
	Config   config.Config
	Store    store.Store
	Sessions *scs.SessionManager
	Tokens   *auth.TokenIssuer
	Logos    *logo.Resolver
	// Discovery is nil when no source is configured; manual resync is then disabled.
	Discovery *discovery.Syncer
	Logger    *slog.Logger
	Now       func() time.Time
}

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *handlers.Handlers
	e   *echo.Echo
	api *api.API
}

// NewEchoServer creates the console and REST API server.
func NewEchoServer(opts Options) (*EchoServer, error) {
	if opts.Store == nil {
		return nil, errors.New("http server: store is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("http server: session manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers.Handlers{
		Cfg:      opts.Config,
		Store:    opts.Store,
		Sessions: opts.Sessions,
		Logos:    opts.Logos,
		Now:      opts.Now,
	}
	// A nil *Syncer stored in the interface would look configured to the handlers.
	if opts.Discovery != nil && len(opts.Discovery.Sources) > 0 {
		h.Syncer = opts.Discovery
	}

	e := echo.New()
	e.Logger = logger

	es := &EchoServer{
		h: h,
		e: e,
		api: &api.API{
			Store:     opts.Store,
			Tokens:    opts.Tokens,
			Discovery: opts.Discovery,
			Logger:    logger,
			Now:       opts.Now,
			Freshness: freshnessWindow(opts.Config),
		},
	}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes()
	return es, nil
}

func freshnessWindow(cfg config.Config) time.Duration {
	if cfg.DiscoverySyncInterval > 0 {
		return 2 * cfg.DiscoverySyncInterval
	}
	return 0
}

func (es *EchoServer) registerRoutes() {
	es.e.Use(requestID())
	es.e.Use(accessLog())
	es.e.Use(middleware.Recover())

	es.e.GET("/healthz", es.h.HandleHealthz)
	es.e.StaticFS("/static", views.Static())

	// The REST API authenticates with bearer tokens and is exempt from CSRF.
	es.api.Register(es.e)

	console := es.e.Group("")
	console.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(c *echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	console.GET("/login", es.h.HandleLoginGet)
	console.POST("/login", es.h.HandleLoginPost)
	console.POST("/logout", es.h.HandleLogoutPost)

	authed := console.Group("", authn.RequireAuth(es.h.Sessions, es.h.Store.Users()))
	admin := authn.RequireRole(auth.RoleAdmin)

	authed.GET("/", es.h.HandleDashboard)
	authed.GET("/logos/:id", es.h.HandleLogo)

	authed.GET("/applications", es.h.HandleApplications)
	authed.GET("/applications/new", es.h.HandleApplicationNew, admin)
	authed.POST("/applications", es.h.HandleApplicationCreate, admin)
	authed.GET("/applications/:id", es.h.HandleApplicationShow)
	authed.GET("/applications/:id/edit", es.h.HandleApplicationEdit, admin)
	authed.POST("/applications/:id", es.h.HandleApplicationUpdate, admin)
	authed.POST("/applications/:id/status", es.h.HandleApplicationStatus, admin)
	authed.POST("/applications/:id/owner", es.h.HandleApplicationOwner, admin)
	authed.POST("/applications/:id/delete", es.h.HandleApplicationDelete, admin)

	authed.GET("/procurement", es.h.HandleContracts)
	authed.POST("/procurement", es.h.HandleContractCreate, admin)
	authed.POST("/procurement/:id", es.h.HandleContractUpdate, admin)
	authed.POST("/procurement/:id/delete", es.h.HandleContractDelete, admin)
	authed.GET("/calendar", es.h.HandleCalendar)

	authed.GET("/clients", es.h.HandleClients)
	authed.POST("/clients", es.h.HandleClientCreate, admin)
	authed.POST("/clients/:id", es.h.HandleClientUpdate, admin)
	authed.POST("/clients/:id/delete", es.h.HandleClientDelete, admin)

	authed.GET("/categories", es.h.HandleCategories)
	authed.POST("/categories", es.h.HandleCategoryCreate, admin)
	authed.POST("/categories/:id/delete", es.h.HandleCategoryDelete, admin)
	authed.POST("/categories/:id/subcategories", es.h.HandleSubCategoryCreate, admin)
	authed.POST("/subcategories/:id/delete", es.h.HandleSubCategoryDelete, admin)
	authed.POST("/categories/:id/subcategories/:sid/fields", es.h.HandleFieldCreate, admin)
	authed.POST("/fields/:id/delete", es.h.HandleFieldDelete, admin)

	authed.GET("/discovery", es.h.HandleDiscovery)
	authed.POST("/discovery/:id/adopt", es.h.HandleDiscoveryAdopt, admin)
	authed.POST("/discovery/:id/ignore", es.h.HandleDiscoveryIgnore, admin)

	authed.GET("/leads", es.h.HandleLeads)
	authed.POST("/leads", es.h.HandleLeadCreate, admin)
	authed.POST("/leads/:id/status", es.h.HandleLeadStatus, admin)
	authed.POST("/leads/:id/delete", es.h.HandleLeadDelete, admin)

	authed.GET("/settings", es.h.HandleSettings)
	authed.POST("/settings", es.h.HandleSettingsUpdate, admin)
	authed.GET("/settings/connectors", es.h.HandleConnectors)
	authed.POST("/settings/resync", es.h.HandleResync, admin)
	authed.GET("/settings/users", es.h.HandleSettingsUsers, admin)
	authed.POST("/settings/users", es.h.HandleSettingsUsersCreate, admin)
	authed.POST("/settings/users/:id", es.h.HandleSettingsUserUpdate, admin)
	authed.POST("/settings/users/:id/delete", es.h.HandleSettingsUserDelete, admin)
}

// requestID tags every request with an id, reusing a sane X-Request-ID from the client.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
			if id == "" || len(id) > 128 || strings.ContainsAny(id, "\r\n") {
				id = uuid.NewString()
			}
			c.Set(handlers.ContextKeyRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// accessLog writes one structured line per request and feeds the HTTP metrics.
func accessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			status := http.StatusOK
			committed := false
			if resp, uerr := echo.UnwrapResponse(c.Response()); uerr == nil {
				committed = resp.Committed
				if resp.Status != 0 {
					status = resp.Status
				}
			}
			// A handler that already wrote its error response reports the written status.
			if err != nil && !committed {
				status = httpStatusFromError(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

			requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			c.Logger().Log(c.Request().Context(), level, "http request",
				"request_id", requestID,
				"method", method,
				"route", route,
				"path", c.Request().URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"ip", c.RealIP(),
			)
			return err
		}
	}
}

// Handler returns the server wrapped in the session middleware.
func (es *EchoServer) Handler() http.Handler {
	return es.h.Sessions.LoadAndSave(es.e)
}

// StartServer serves on server, replacing its handler with Handler().
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.Handler()
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down server.
func (es *EchoServer) Shutdown(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}
