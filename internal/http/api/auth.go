package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/auth/providers"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a signed bearer token.
func (a *API) Login(c *echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if a.Tokens == nil {
		return c.JSON(http.StatusServiceUnavailable, Error{Code: CodeInternal, Message: "API tokens are not configured."})
	}

	principal, err := providers.NewPasswordProvider(a.Store.Users()).Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, Error{Code: CodeUnauthorized, Message: "Invalid email or password."})
		}
		return a.writeError(c, err)
	}
	principal.Method = auth.MethodToken

	if err := a.Store.Users().UpdateLoginMeta(c.Request().Context(), principal.UserID, a.now(), c.RealIP()); err != nil {
		a.logger().Warn("record api login failed", "user_id", principal.UserID, "error", err)
	}

	token, err := a.Tokens.Issue(principal)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}
