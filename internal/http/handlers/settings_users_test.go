package handlers

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/store"
)

func TestSettingsUserUpdateToast(t *testing.T) {
	t.Parallel()

	const password = "correct-horse-battery"
	tests := []struct {
		name      string
		form      url.Values
		wantKind  string
		wantTitle string
		wantRole  string
	}{
		{name: "role", form: url.Values{"role": {auth.RoleAdmin}}, wantKind: "success", wantTitle: "Role updated", wantRole: auth.RoleAdmin},
		{name: "password", form: url.Values{"password": {password}, "confirm_password": {password}}, wantKind: "success", wantTitle: "Password updated", wantRole: auth.RoleViewer},
		{name: "both", form: url.Values{"role": {auth.RoleAdmin}, "password": {password}, "confirm_password": {password}}, wantKind: "success", wantTitle: "User updated", wantRole: auth.RoleAdmin},
		{name: "same role only", form: url.Values{"role": {auth.RoleViewer}}, wantKind: "info", wantTitle: "No changes", wantRole: auth.RoleViewer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newConsoleHarness(t)
			viewer, err := h.store.Users().Create(context.Background(), store.CreateUserParams{
				Email: "analyst@example.com", PasswordHash: "unused", Role: auth.RoleViewer, IsActive: true,
			})
			if err != nil {
				t.Fatalf("create viewer: %v", err)
			}

			id := itoa64(viewer.ID)
			c, rec := h.context(http.MethodPost, "/settings/users/"+id, tt.form)
			c.SetPathValues(echo.PathValues{{Name: "id", Value: id}})
			if err := h.handlers.HandleSettingsUserUpdate(c); err != nil {
				t.Fatalf("HandleSettingsUserUpdate() error = %v", err)
			}
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
			toast := h.handlers.popFlash(c)
			if toast == nil || toast.Category != tt.wantKind || toast.Title != tt.wantTitle {
				t.Fatalf("toast = %+v, want %s %q", toast, tt.wantKind, tt.wantTitle)
			}
			got, err := h.store.Users().Get(context.Background(), viewer.ID)
			if err != nil {
				t.Fatalf("get user: %v", err)
			}
			if got.Role != tt.wantRole {
				t.Fatalf("role = %q, want %q", got.Role, tt.wantRole)
			}
		})
	}
}
