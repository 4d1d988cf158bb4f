package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"
)

func newTestContext(method, target string) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(method, target, nil), rec), rec
}

// withSession loads an empty scs session into the request so handlers can flash.
func withSession(t *testing.T, c *echo.Context) *scs.SessionManager {
	t.Helper()
	sessions := scs.New()
	ctx, err := sessions.Load(c.Request().Context(), "")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	c.SetRequest(c.Request().WithContext(ctx))
	return sessions
}

func TestVaryOn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []string
		add      []string
		want     string
	}{
		{name: "empty", add: []string{"hx-request"}, want: "Hx-Request"},
		{name: "merges and dedupes", existing: []string{"Accept-Encoding, hx-target"}, add: []string{"HX-Request", "HX-Target", "accept-encoding"}, want: "Accept-Encoding, Hx-Target, Hx-Request"},
		{name: "several header lines", existing: []string{"Origin", "Cookie"}, add: []string{"Origin"}, want: "Origin, Cookie"},
		{name: "wildcard wins", existing: []string{"*"}, add: []string{"HX-Request"}, want: "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodGet, "/")
			for _, v := range tt.existing {
				c.Response().Header().Add(echo.HeaderVary, v)
			}
			varyOn(c, tt.add...)
			if got := strings.Join(rec.Header().Values(echo.HeaderVary), " | "); got != tt.want {
				t.Fatalf("Vary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSwapsInto(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{name: "full page", want: false},
		{name: "htmx other target", headers: map[string]string{hxRequest: "true", hxTarget: "main"}, want: false},
		{name: "htmx matching target", headers: map[string]string{hxRequest: "true", hxTarget: "clients-results"}, want: true},
		{name: "target without htmx", headers: map[string]string{hxTarget: "clients-results"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodGet, "/clients")
			for k, v := range tt.headers {
				c.Request().Header.Set(k, v)
			}
			if got := swapsInto(c, "clients-results"); got != tt.want {
				t.Fatalf("swapsInto() = %v, want %v", got, tt.want)
			}
			if vary := rec.Header().Get(echo.HeaderVary); vary != "Hx-Request, Hx-Target" {
				t.Fatalf("Vary = %q", vary)
			}
		})
	}
}

func TestLogoutRedirects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		htmx         bool
		wantStatus   int
		wantLocation string
		wantHX       string
	}{
		{name: "plain form post", wantStatus: http.StatusSeeOther, wantLocation: "/login"},
		{name: "htmx post", htmx: true, wantStatus: http.StatusOK, wantHX: "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodPost, "/logout")
			if tt.htmx {
				c.Request().Header.Set(hxRequest, "true")
			}
			h := &Handlers{Sessions: withSession(t, c)}

			if err := h.HandleLogoutPost(c); err != nil {
				t.Fatalf("HandleLogoutPost() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get(echo.HeaderLocation); got != tt.wantLocation {
				t.Fatalf("Location = %q, want %q", got, tt.wantLocation)
			}
			if got := rec.Header().Get(hxRedirect); got != tt.wantHX {
				t.Fatalf("HX-Redirect = %q, want %q", got, tt.wantHX)
			}
			if toast := h.popFlash(c); toast == nil || toast.Title != "Signed out" {
				t.Fatalf("flash after logout = %+v", toast)
			}
		})
	}
}

func TestFlashIsShownOnce(t *testing.T) {
	t.Parallel()

	c, _ := newTestContext(http.MethodGet, "/")
	h := &Handlers{Sessions: withSession(t, c)}

	h.flash(c, " WARNING ", " Renewal due ", "")
	toast := h.popFlash(c)
	if toast == nil || toast.Category != "warning" || toast.Title != "Renewal due" {
		t.Fatalf("popFlash() = %+v", toast)
	}
	if again := h.popFlash(c); again != nil {
		t.Fatalf("second popFlash() = %+v, want nil", again)
	}

	h.flash(c, "shout", "", "  ")
	if blank := h.popFlash(c); blank != nil {
		t.Fatalf("blank toast stored: %+v", blank)
	}
	h.flash(c, "shout", "Saved", "")
	if got := h.popFlash(c); got == nil || got.Category != "info" {
		t.Fatalf("unknown category kept: %+v", got)
	}
}

func TestRenderErrorHidesCause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requestID string
		want      string
	}{
		{name: "with reference", requestID: "req-123", want: "Internal server error. Reference: req-123. Code: INTERNAL_ERROR."},
		{name: "without reference", want: "Internal server error. Code: INTERNAL_ERROR."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodGet, "/applications")
			if tt.requestID != "" {
				c.Set(ContextKeyRequestID, tt.requestID)
			}
			if err := (&Handlers{}).RenderError(c, errors.New("dial postgres: password=hunter2")); err != nil {
				t.Fatalf("RenderError() error = %v", err)
			}
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Fatalf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlashWithoutSessionsIsNoop(t *testing.T) {
	t.Parallel()

	c, _ := newTestContext(http.MethodGet, "/")
	h := &Handlers{}
	h.flash(c, "success", "Saved", "")
	if got := h.popFlash(c); got != nil {
		t.Fatalf("popFlash() = %+v, want nil", got)
	}
}
