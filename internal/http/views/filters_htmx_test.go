package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
)

const (
	selectFilterTrigger    = "change delay:150ms from:select, submit"
	debouncedFilterTrigger = "input changed delay:300ms from:input[name='q'], " + selectFilterTrigger
)

func renderViewComponent(t *testing.T, component templ.Component) string {
	t.Helper()

	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render component: %v", err)
	}
	return buf.String()
}

func TestApplicationsPageResultsUsesDebouncedHTMXFilters(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ApplicationsPageResults(viewmodels.ApplicationsViewData{}))
	assertContains(t, html, `hx-get="/applications"`)
	assertContains(t, html, `hx-target="#applications-results"`)
	assertContains(t, html, `hx-swap="outerHTML"`)
	assertContains(t, html, `hx-push-url="true"`)
	assertContains(t, html, `hx-trigger="`+debouncedFilterTrigger+`"`)
	assertNotContains(t, html, `<html`)
}

func TestClientsPageResultsUsesDebouncedHTMXFilters(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ClientsPageResults(viewmodels.ClientsViewData{}))
	assertContains(t, html, `hx-get="/clients"`)
	assertContains(t, html, `hx-target="#clients-results"`)
	assertContains(t, html, `hx-swap="outerHTML"`)
	assertContains(t, html, `hx-push-url="true"`)
	assertContains(t, html, `hx-trigger="`+debouncedFilterTrigger+`"`)
}

func TestContractsPageResultsUsesHTMXFilters(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ContractsPageResults(viewmodels.ContractsViewData{}))
	assertContains(t, html, `hx-get="/procurement"`)
	assertContains(t, html, `hx-target="#contracts-results"`)
	assertContains(t, html, `hx-swap="outerHTML"`)
	assertContains(t, html, `hx-push-url="true"`)
	assertContains(t, html, selectFilterTrigger)
}

func TestDiscoveryPageResultsUsesDebouncedHTMXFilters(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, DiscoveryPageResults(viewmodels.DiscoveryViewData{}))
	assertContains(t, html, `hx-get="/discovery"`)
	assertContains(t, html, `hx-target="#discovery-results"`)
	assertContains(t, html, `hx-swap="outerHTML"`)
	assertContains(t, html, `hx-push-url="true"`)
	assertContains(t, html, `hx-trigger="`+debouncedFilterTrigger+`"`)
}

func TestApplicationsPageRendersRowsAndPagination(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ApplicationsPage(viewmodels.ApplicationsViewData{
		Layout: viewmodels.LayoutData{Title: "Applications", ActivePath: "/applications"},
		Items: []viewmodels.ApplicationListItem{
			{ID: 7, Name: "Figma", Status: "active", MonthlyCost: "$450.00", Seats: 10, Users: 8, LogoURL: "/logos/7"},
		},
		HasItems: true,
		Pagination: viewmodels.Pagination{
			Page: 1, PerPage: 20, TotalPages: 2, TotalCount: 21, ShowingFrom: 1, ShowingTo: 20,
			NextURL: "/applications?page=2&status=active",
		},
	}))

	assertContains(t, html, `href="/applications/7"`)
	assertContains(t, html, `$450.00`)
	assertContains(t, html, `id="applications-results"`)
	assertContains(t, html, `href="/applications?page=2&amp;status=active"`)
	assertContains(t, html, `aria-current="page">Applications`)
	assertNotContains(t, html, `rel="prev"`)
}

func TestApplicationsPageHidesAddButtonForViewers(t *testing.T) {
	t.Parallel()

	viewer := renderViewComponent(t, ApplicationsPage(viewmodels.ApplicationsViewData{EmptyStateMsg: "No applications match."}))
	assertNotContains(t, viewer, `id="applications-new"`)
	assertContains(t, viewer, `No applications match.`)

	admin := renderViewComponent(t, ApplicationsPage(viewmodels.ApplicationsViewData{Layout: viewmodels.LayoutData{IsAdmin: true}}))
	assertContains(t, admin, `id="applications-new"`)
}

func TestClientsPageShowsFieldErrors(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ClientsPage(viewmodels.ClientsViewData{
		Layout:   viewmodels.LayoutData{IsAdmin: true, CSRFToken: "tok"},
		OpenForm: true,
		Form: viewmodels.ClientForm{
			Name:   "Acme",
			Email:  "not-an-email",
			Errors: map[string]string{"email": "must be a valid email address"},
		},
	}))

	assertContains(t, html, `id="client-form"`)
	assertContains(t, html, `value="not-an-email"`)
	assertContains(t, html, `must be a valid email address`)
	assertContains(t, html, `name="csrf" value="tok"`)
}

func TestDiscoveryPageShowsStateCounts(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, DiscoveryPage(viewmodels.DiscoveryViewData{
		Counts: map[string]int64{"new": 3, "adopted": 1},
	}))
	assertContains(t, html, `New 3`)
	assertContains(t, html, `Adopted 1`)
	assertContains(t, html, `Ignored 0`)
}

func TestEscapesUserContent(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ApplicationsPageResults(viewmodels.ApplicationsViewData{
		Items:    []viewmodels.ApplicationListItem{{ID: 1, Name: `<script>alert(1)</script>`}},
		HasItems: true,
	}))
	assertNotContains(t, html, `<script>alert(1)</script>`)
	assertContains(t, html, `&lt;script&gt;`)
}

func TestEveryPageRenders(t *testing.T) {
	t.Parallel()

	layout := viewmodels.LayoutData{CSRFToken: "tok", UserEmail: "a@example.com", UserRole: "admin", IsAdmin: true}
	components := map[string]templ.Component{
		"login":            LoginPage(viewmodels.LoginViewData{CSRFToken: "tok", DemoMode: true}),
		"forbidden":        ForbiddenPage(layout),
		"dashboard":        DashboardPage(viewmodels.DashboardViewData{Layout: layout}),
		"application_form": ApplicationFormPage(viewmodels.ApplicationFormViewData{Layout: layout, IsNew: true, Action: "/applications"}),
		"application_show": ApplicationShowPage(viewmodels.ApplicationShowViewData{Layout: layout, ID: 1, Name: "Slack", Status: "active"}),
		"categories":       CategoriesPage(viewmodels.CategoriesViewData{Layout: layout}),
		"contracts":        ContractsPage(viewmodels.ContractsViewData{Layout: layout, OpenForm: true}),
		"calendar":         CalendarPage(viewmodels.CalendarViewData{Layout: layout, Year: 2026}),
		"leads":            LeadsPage(viewmodels.LeadsViewData{Layout: layout, OpenForm: true}),
		"settings":         SettingsPage(viewmodels.SettingsViewData{Layout: layout}),
		"connectors":       ConnectorsPage(viewmodels.ConnectorsViewData{Layout: layout}),
	}
	for name, component := range components {
		html := renderViewComponent(t, component)
		if !strings.Contains(html, "</html>") {
			t.Fatalf("%s: expected a full document", name)
		}
	}
}

func assertContains(t *testing.T, content, want string) {
	t.Helper()
	if !strings.Contains(content, want) {
		t.Fatalf("expected rendered HTML to contain %q", want)
	}
}

func assertNotContains(t *testing.T, content, disallowed string) {
	t.Helper()
	if strings.Contains(content, disallowed) {
		t.Fatalf("expected rendered HTML to not contain %q", disallowed)
	}
}
