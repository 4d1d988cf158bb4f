package views

import (
	"testing"

	"github.com/stackspend/stackspend/internal/http/viewmodels"
)

func TestLayoutShell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		layout  viewmodels.LayoutData
		want    []string
		notWant []string
	}{
		{
			name:    "boosted with csrf header",
			layout:  viewmodels.LayoutData{Title: "Dashboard", CSRFToken: "csrf-token-123"},
			want:    []string{`hx-boost="true"`, `X-CSRF-Token`, `csrf-token-123`, `<title>Dashboard · StackSpend</title>`, `>StackSpend</a>`},
			notWant: []string{`action="/logout"`, `class="toast`},
		},
		{
			name:   "signed in user gets an unboosted sign out form",
			layout: viewmodels.LayoutData{CSRFToken: "t", UserEmail: "finance@acme.test", OrgName: "Acme"},
			want:   []string{`form method="post" action="/logout" hx-boost="false"`, `finance@acme.test`, `>Acme</a>`},
		},
		{
			name:   "new discoveries badge",
			layout: viewmodels.LayoutData{NewDiscoveries: 7},
			want:   []string{`<span class="badge">7</span>`},
		},
		{
			name:    "no badge when nothing is new",
			layout:  viewmodels.LayoutData{},
			notWant: []string{`class="badge"`},
		},
		{
			name: "flash toast",
			layout: viewmodels.LayoutData{Toast: &viewmodels.ToastViewData{
				Category: "error", Title: "Sync failed", Description: "okta: 401",
			}},
			want: []string{`class="toast toast-error"`, `<strong>Sync failed</strong>`, `okta: 401`},
		},
		{
			name:   "active nav item",
			layout: viewmodels.LayoutData{ActivePath: "/calendar"},
			want:   []string{`href="/calendar" aria-current="page"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			html := renderViewComponent(t, Layout(tt.layout))
			for _, w := range tt.want {
				assertContains(t, html, w)
			}
			for _, nw := range tt.notWant {
				assertNotContains(t, html, nw)
			}
		})
	}
}
