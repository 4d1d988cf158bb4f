package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v5"
)

const (
	hxRequest  = "HX-Request"
	hxTarget   = "HX-Target"
	hxRedirect = "HX-Redirect"
)

func isHX(c *echo.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(hxRequest)), "true")
}

// swapsInto reports whether the request is an htmx swap aimed at the element with id target.
// The response varies on both headers either way, so caches keep pages and fragments apart.
func swapsInto(c *echo.Context, target string) bool {
	varyOn(c, hxRequest, hxTarget)
	return isHX(c) && strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(hxTarget)), target)
}

// redirect sends htmx clients a full-page HX-Redirect and everyone else a 303.
func redirect(c *echo.Context, to string) error {
	varyOn(c, hxRequest)
	if isHX(c) {
		c.Response().Header().Set(hxRedirect, to)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// varyOn merges names into the Vary header without duplicates. A "*" already present wins.
func varyOn(c *echo.Context, names ...string) {
	header := c.Response().Header()
	var existing []string
	for _, line := range header.Values(echo.HeaderVary) {
		existing = append(existing, strings.Split(line, ",")...)
	}
	if slices.ContainsFunc(existing, func(tok string) bool { return strings.TrimSpace(tok) == "*" }) {
		return
	}
	var tokens []string
	for _, tok := range append(existing, names...) {
		tok = http.CanonicalHeaderKey(strings.TrimSpace(tok))
		if tok != "" && !slices.Contains(tokens, tok) {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) > 0 {
		header.Set(echo.HeaderVary, strings.Join(tokens, ", "))
	}
}

// formErrorStatus is the status for a re-rendered form with field errors. htmx only swaps 2xx
// responses, so boosted requests get 200 and plain requests get 422.
func formErrorStatus(c *echo.Context) int {
	if isHX(c) {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}
