package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/auth/providers"
	"github.com/stackspend/stackspend/internal/http/authn"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
)

const invalidLoginMessage = "Invalid email or password."

var errNoSessions = errors.New("auth sessions not configured")

func (h *Handlers) loginForm(c *echo.Context, next string) viewmodels.LoginViewData {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return viewmodels.LoginViewData{
		CSRFToken: token,
		Next:      authn.SanitizeNext(next),
		DemoMode:  h.Cfg.UseMockData,
	}
}

// HandleLoginGet always renders the form. A signed-in user also gets a link to continue.
func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	if h.Sessions == nil {
		return errNoSessions
	}
	principal, signedIn, err := authn.LoadPrincipal(c, h.Sessions, h.Store.Users())
	if err != nil {
		return err
	}
	data := h.loginForm(c, c.QueryParam("next"))
	data.Toast = h.popFlash(c)
	if signedIn {
		data.SignedInAs = principal.Email
	}
	return h.RenderComponent(c, views.LoginPage(data))
}

// HandleLoginPost verifies the credentials, rotates the session token and sends the user
// to the sanitized next path. Bad credentials re-render the form with one generic message.
func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errNoSessions
	}
	ctx := c.Request().Context()

	data := h.loginForm(c, c.FormValue("next"))
	data.Email = auth.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")

	rejected := func() error {
		data.ErrorMessage = invalidLoginMessage
		return h.RenderComponent(c, views.LoginPage(data))
	}
	if data.Email == "" || strings.TrimSpace(password) == "" {
		return rejected()
	}
	principal, err := providers.NewPasswordProvider(h.Store.Users()).Authenticate(ctx, data.Email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return rejected()
	}
	if err != nil {
		return err
	}

	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}
	h.Sessions.Put(ctx, authn.SessionKeyUserID, principal.UserID)
	if err := h.Store.Users().UpdateLoginMeta(ctx, principal.UserID, h.now(), c.RealIP()); err != nil {
		c.Logger().Warn("update login metadata", "user_id", principal.UserID, "error", err)
	}

	to := data.Next
	if to == "" {
		to = "/"
	}
	return c.Redirect(http.StatusSeeOther, to)
}

func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errNoSessions
	}
	if err := h.Sessions.Destroy(c.Request().Context()); err != nil {
		return err
	}
	h.flash(c, "success", "Signed out", "")
	return redirect(c, "/login")
}
