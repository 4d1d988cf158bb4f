// Package authn resolves the caller of a console or API request and enforces roles.
package authn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const (
	ContextKeyPrincipal = "auth_principal"

	SessionKeyUserID = "auth_user_id"

	maxNextLength = 2048
)

func PrincipalFromContext(c *echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(ContextKeyPrincipal).(auth.Principal)
	return p, ok
}

// activeUser loads a user that may still sign in. Deleted and disabled users report ok=false.
func activeUser(ctx context.Context, users store.UserRepository, id int64) (u spend.AuthUser, ok bool, err error) {
	u, err = users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	return u, u.IsActive, nil
}

// LoadPrincipal resolves the session user. A session naming an unusable account is
// destroyed.
func LoadPrincipal(c *echo.Context, sessions *scs.SessionManager, users store.UserRepository) (auth.Principal, bool, error) {
	ctx := c.Request().Context()
	id := sessions.GetInt64(ctx, SessionKeyUserID)
	if id <= 0 {
		return auth.Principal{}, false, nil
	}
	u, ok, err := activeUser(ctx, users, id)
	if err != nil {
		return auth.Principal{}, false, err
	}
	if !ok {
		_ = sessions.Destroy(ctx)
		return auth.Principal{}, false, nil
	}
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, Method: auth.MethodPassword}, true, nil
}

func RequireAuth(sessions *scs.SessionManager, users store.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			p, ok, err := LoadPrincipal(c, sessions, users)
			if err != nil {
				return err
			}
			if !ok {
				return unauthenticated(c)
			}
			c.Set(ContextKeyPrincipal, p)
			return next(c)
		}
	}
}

// RequireBearer authenticates API calls with an "Authorization: Bearer <token>" header.
// The role comes from the user row, so demotions and deactivations apply to tokens
// issued earlier.
func RequireBearer(tokens *auth.TokenIssuer, users store.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok || tokens == nil {
				return unauthenticated(c)
			}
			p, err := tokens.Verify(raw)
			if err != nil {
				return unauthenticated(c)
			}
			u, ok, err := activeUser(c.Request().Context(), users, p.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return unauthenticated(c)
			}
			p.Role = u.Role
			c.Set(ContextKeyPrincipal, p)
			return next(c)
		}
	}
}

func RequireRole(role string) echo.MiddlewareFunc {
	role = strings.ToLower(strings.TrimSpace(role))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			p, ok := PrincipalFromContext(c)
			if !ok {
				return unauthenticated(c)
			}
			if strings.EqualFold(strings.TrimSpace(p.Role), role) {
				return next(c)
			}
			if isAPIRequest(c) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error":   "forbidden",
					"message": "This action requires the " + role + " role.",
				})
			}
			return echo.ErrForbidden
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// unauthenticated answers API calls with 401 JSON and sends console visitors to the login
// page, remembering where a GET was headed.
func unauthenticated(c *echo.Context) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"message": "A valid bearer token is required.",
		})
	}

	to := "/login"
	if c.Request().Method == http.MethodGet {
		if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
			to += "?next=" + url.QueryEscape(next)
		}
	}
	if strings.EqualFold(c.Request().Header.Get("HX-Request"), "true") {
		c.Response().Header().Set("HX-Redirect", to)
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// SanitizeNext keeps only same-origin relative paths so a login redirect can't leave the
// site. Encoded slashes and backslashes are refused outright.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	switch {
	case next == "", next == "/", len(next) > maxNextLength:
		return ""
	case !strings.HasPrefix(next, "/"), strings.HasPrefix(next, "//"):
		return ""
	case strings.ContainsAny(next, "\\\r\n\t"):
		return ""
	}
	lower := strings.ToLower(next)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if u.Path == "/login" || strings.HasPrefix(u.Path, "/login/") {
		return ""
	}
	return next
}
