package discovery

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScopeClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		scopes           []string
		wantPrivileged   bool
		wantConfidential bool
	}{
		{name: "full gmail", scopes: []string{"https://mail.google.com/", "openid"}, wantPrivileged: true},
		{name: "directory admin", scopes: []string{"https://www.googleapis.com/auth/admin.directory.user"}, wantPrivileged: true},
		{name: "read only calendar", scopes: []string{"https://www.googleapis.com/auth/calendar.readonly", "email"}, wantConfidential: true},
		{name: "aws admin permission set", scopes: []string{"AdministratorAccess", "ReadOnlyAccess"}, wantPrivileged: true},
		{name: "aws read only permission set", scopes: []string{"ReadOnlyAccess"}},
		{name: "graph write all", scopes: []string{"Sites.ReadWrite.All"}, wantPrivileged: true},
		{name: "graph mail read", scopes: []string{"User.Read", "Mail.Read"}, wantConfidential: true},
		{name: "sign in only", scopes: []string{"openid", "email", "profile", "User.Read"}},
		{name: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPrivilegedScopes(tt.scopes); got != tt.wantPrivileged {
				t.Fatalf("HasPrivilegedScopes(%v) = %v, want %v", tt.scopes, got, tt.wantPrivileged)
			}
			if got := HasConfidentialScopes(tt.scopes); got != tt.wantConfidential {
				t.Fatalf("HasConfidentialScopes(%v) = %v, want %v", tt.scopes, got, tt.wantConfidential)
			}
		})
	}
}

func TestNormalizeScopes(t *testing.T) {
	t.Parallel()

	got := NormalizeScopes([]string{" openid ", "OPENID", "", "email", "openid"})
	if diff := cmp.Diff([]string{"openid", "email"}, got); diff != "" {
		t.Fatalf("NormalizeScopes mismatch (-want +got):\n%s", diff)
	}
	if got := NormalizeScopes(nil); got != nil {
		t.Fatalf("NormalizeScopes(nil) = %v, want nil", got)
	}
}
