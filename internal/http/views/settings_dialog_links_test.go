package views

import (
	"testing"

	"github.com/stackspend/stackspend/internal/http/viewmodels"
)

func TestSettingsUsersPageUsesQueryParamModalOpenLink(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, SettingsUsersPage(viewmodels.SettingsUsersViewData{
		Layout: viewmodels.LayoutData{
			CSRFToken: "csrf-token-123",
		},
	}))

	assertContains(t, html, `id="settings-users-add-trigger" class="btn-sm-primary" href="/settings/users?open=add"`)
	assertContains(t, html, `href="/settings/users?open=add"`)
	assertNotContains(t, html, `id="settings-users-add"`)
}

func TestSettingsUsersPageOpensDeleteDialog(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, SettingsUsersPage(viewmodels.SettingsUsersViewData{
		Layout:     viewmodels.LayoutData{CSRFToken: "csrf-token-123"},
		OpenDelete: true,
		DeleteID:   42,
		DeleteMail: "viewer@example.com",
	}))

	assertContains(t, html, `action="/settings/users/42/delete"`)
	assertContains(t, html, `Delete viewer@example.com?`)
}

func TestConnectorsPageListsSourcesAndResync(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ConnectorsPage(viewmodels.ConnectorsViewData{
		Layout: viewmodels.LayoutData{
			CSRFToken: "csrf-token-123",
		},
		Sources: []viewmodels.SourceStatusItem{
			{Key: "okta", Name: "Okta", Enabled: true, Discovered: 4},
			{Key: "google_workspace", Name: "Google Workspace"},
		},
		CanResync: true,
	}))

	assertContains(t, html, `id="connector-okta-status"`)
	assertContains(t, html, `id="connector-google_workspace-status"`)
	assertContains(t, html, `4 discovered`)
	assertContains(t, html, `action="/settings/resync"`)
}

func TestConnectorsPageHidesResyncWithoutSources(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ConnectorsPage(viewmodels.ConnectorsViewData{}))
	assertNotContains(t, html, `action="/settings/resync"`)
}
