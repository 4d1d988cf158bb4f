package views

import (
	"net/url"
	"testing"
)

func TestListURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filters url.Values
		page    int
		want    string
	}{
		{name: "no filters first page", want: "/applications", page: 1},
		{name: "page only", page: 3, want: "/applications?page=3"},
		{name: "drops blanks", filters: url.Values{"q": {"  "}, "status": {"active"}}, page: 1, want: "/applications?status=active"},
		{name: "replaces page", filters: url.Values{"page": {"9"}, "q": {"zoom"}}, page: 2, want: "/applications?page=2&q=zoom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ListURL("/applications", tt.filters, tt.page); got != tt.want {
				t.Fatalf("ListURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                    "—",
		"active":              "Active",
		"aws_identity_center": "Aws identity center",
		"READ-only":           "Read only",
	}
	for in, want := range tests {
		if got := Humanize(in); got != want {
			t.Fatalf("Humanize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsActivePath(t *testing.T) {
	t.Parallel()

	if !IsActivePath("/", "/") || IsActivePath("/applications", "/") {
		t.Fatal("root matches only itself")
	}
	if !IsActivePath("/applications/4", "/applications") {
		t.Fatal("expected nested path to be active")
	}
	if IsActivePath("/applicationsx", "/applications") {
		t.Fatal("expected sibling prefix to be inactive")
	}
}

func TestBadgeClasses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "status adopted", got: StatusBadgeClass(" Adopted "), want: badgeTones[toneGood]},
		{name: "status unknown", got: StatusBadgeClass("paused"), want: neutralBadge},
		{name: "risk critical", got: RiskBadgeClass("critical"), want: badgeTones[toneBad]},
		{name: "managed", got: ManagedBadgeClass("MANAGED"), want: badgeTones[toneGood]},
		{name: "viewer role", got: AuthUserRoleBadgeClass("viewer"), want: badgeTones[toneMuted]},
		{name: "disabled user", got: AuthUserStatusBadgeClass(false), want: badgeTones[toneWarn]},
		{name: "usage fallback", got: UsageBucketClass("unknown"), want: "bg-slate-300"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
