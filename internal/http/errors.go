package httpapp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/api"
	"github.com/stackspend/stackspend/internal/http/handlers"
)

type statusCoder interface {
	StatusCode() int
}

// httpStatusFromError returns the status carried by err, 500 when it carries none.
func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// httpErrorHandler renders errors that escaped the handlers. Messages never reach the client:
// 5xx responses carry only the request id and a stable code.
func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	if resp, uerr := echo.UnwrapResponse(c.Response()); uerr == nil && resp.Committed {
		return
	}

	status := httpStatusFromError(err)
	if status >= http.StatusInternalServerError {
		_ = es.h.RenderError(c, err)
		return
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = c.JSON(status, api.Error{Code: apiCode(status), Message: http.StatusText(status)})
		return
	}

	switch status {
	case http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	case http.StatusForbidden:
		if es.h.Store != nil {
			_ = es.h.RenderForbidden(c)
			return
		}
		_ = c.String(status, http.StatusText(status))
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

func apiCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return api.CodeNotFound
	case http.StatusUnauthorized:
		return api.CodeUnauthorized
	case http.StatusForbidden:
		return api.CodeForbidden
	case http.StatusConflict:
		return api.CodeConflict
	case http.StatusUnprocessableEntity:
		return api.CodeInvalidInput
	default:
		return api.CodeBadRequest
	}
}
