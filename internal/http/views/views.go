// Package views renders the console pages. Pages are html/template files embedded in the
// binary and exposed as templ components so handlers render every page the same way.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/a-h/templ"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the console's stylesheet and other assets, rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcs = template.FuncMap{
	"active":          IsActivePath,
	"ariaCurrent":     AriaCurrent,
	"statusBadge":     StatusBadgeClass,
	"riskBadge":       RiskBadgeClass,
	"managedBadge":    ManagedBadgeClass,
	"usageBar":        UsageBucketClass,
	"sourceLabel":     SourceLabel,
	"humanize":        Humanize,
	"roleLabel":       HumanizeAuthUserRole,
	"roleBadge":       AuthUserRoleBadgeClass,
	"userStatus":      AuthUserStatusLabel,
	"userStatusBadge": AuthUserStatusBadgeClass,
	"alertRole":       AlertRole,
	"alertLive":       AlertAriaLive,
	"fieldError": func(errs map[string]string, field string) string {
		return errs[field]
	},
	"join": strings.Join,
}

// pages maps a page name to its parsed template set (shared layout plus the page file).
var pages = mustParsePages()

func mustParsePages() map[string]*template.Template {
	base := template.Must(template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/shared/*.html"))
	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		panic(err)
	}
	out := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		out[name] = template.Must(template.Must(base.Clone()).ParseFS(templateFS, file))
	}
	return out
}

func render(page, name string, data any) templ.Component {
	set, ok := pages[page]
	if !ok {
		panic(fmt.Sprintf("views: unknown page %q", page))
	}
	t := set.Lookup(name)
	if t == nil {
		panic(fmt.Sprintf("views: page %q has no template %q", page, name))
	}
	return templ.FromGoHTML(t, data)
}

func Layout(layout viewmodels.LayoutData) templ.Component {
	return render("blank", "layout", struct{ Layout viewmodels.LayoutData }{layout})
}

func LoginPage(data viewmodels.LoginViewData) templ.Component {
	return render("login", "login", data)
}

func ForbiddenPage(layout viewmodels.LayoutData) templ.Component {
	return render("forbidden", "layout", struct{ Layout viewmodels.LayoutData }{layout})
}

func DashboardPage(data viewmodels.DashboardViewData) templ.Component {
	return render("dashboard", "layout", data)
}

func ApplicationsPage(data viewmodels.ApplicationsViewData) templ.Component {
	return render("applications", "layout", data)
}

func ApplicationsPageResults(data viewmodels.ApplicationsViewData) templ.Component {
	return render("applications", "applications_results", data)
}

func ApplicationFormPage(data viewmodels.ApplicationFormViewData) templ.Component {
	return render("application_form", "layout", data)
}

func ApplicationShowPage(data viewmodels.ApplicationShowViewData) templ.Component {
	return render("application_show", "layout", data)
}

func ClientsPage(data viewmodels.ClientsViewData) templ.Component {
	return render("clients", "layout", data)
}

func ClientsPageResults(data viewmodels.ClientsViewData) templ.Component {
	return render("clients", "clients_results", data)
}

func CategoriesPage(data viewmodels.CategoriesViewData) templ.Component {
	return render("categories", "layout", data)
}

func ContractsPage(data viewmodels.ContractsViewData) templ.Component {
	return render("contracts", "layout", data)
}

func ContractsPageResults(data viewmodels.ContractsViewData) templ.Component {
	return render("contracts", "contracts_results", data)
}

func CalendarPage(data viewmodels.CalendarViewData) templ.Component {
	return render("calendar", "layout", data)
}

func DiscoveryPage(data viewmodels.DiscoveryViewData) templ.Component {
	return render("discovery", "layout", data)
}

func DiscoveryPageResults(data viewmodels.DiscoveryViewData) templ.Component {
	return render("discovery", "discovery_results", data)
}

func LeadsPage(data viewmodels.LeadsViewData) templ.Component {
	return render("leads", "layout", data)
}

func SettingsPage(data viewmodels.SettingsViewData) templ.Component {
	return render("settings", "layout", data)
}

func SettingsUsersPage(data viewmodels.SettingsUsersViewData) templ.Component {
	return render("settings_users", "layout", data)
}

func ConnectorsPage(data viewmodels.ConnectorsViewData) templ.Component {
	return render("connectors", "layout", data)
}
