package discovery

import (
	"slices"
	"strings"
)

// Scope rules match lowercased scopes. Besides OAuth scopes they cover AWS permission set
// names, which the Identity Center source reports as scopes.
var (
	privilegedExact = []string{
		"https://mail.google.com/",
		"https://www.googleapis.com/auth/drive",
		"administratoraccess",
		"poweruseraccess",
		"iamfullaccess",
	}
	privilegedParts = []string{
		"/auth/admin.directory",
		"/auth/cloud-platform",
		"/auth/gmail.modify",
		"/auth/gmail.send",
		"/auth/apps.",
		"okta.users.manage",
		"okta.apps.manage",
		".readwrite.all",
	}
	confidentialParts = []string{
		"/auth/gmail.",
		"/auth/drive",
		"/auth/calendar",
		"/auth/contacts",
		"/auth/spreadsheets",
		"/auth/documents",
		"mail.read",
		"files.read",
		".readonly",
	}
)

// NormalizeScopes lowercases, trims and dedupes scopes in first-seen order.
func NormalizeScopes(scopes []string) []string {
	var out []string
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func HasPrivilegedScopes(scopes []string) bool {
	return slices.ContainsFunc(NormalizeScopes(scopes), func(s string) bool {
		return slices.Contains(privilegedExact, s) || containsAny(s, privilegedParts)
	})
}

func HasConfidentialScopes(scopes []string) bool {
	return slices.ContainsFunc(NormalizeScopes(scopes), func(s string) bool {
		return containsAny(s, confidentialParts)
	})
}

func containsAny(s string, parts []string) bool {
	return slices.ContainsFunc(parts, func(p string) bool { return strings.Contains(s, p) })
}
