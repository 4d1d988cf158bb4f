package views

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/stackspend/stackspend/internal/discovery"
)

const neutralBadge = "badge-outline"

type tone int

const (
	toneGood tone = iota + 1
	toneInfo
	toneWarn
	toneBad
	toneMuted
)

var badgeTones = map[tone]string{
	toneGood:  "badge bg-emerald-100 text-emerald-800 dark:bg-emerald-900/50 dark:text-emerald-100",
	toneInfo:  "badge bg-sky-100 text-sky-800 dark:bg-sky-900/50 dark:text-sky-100",
	toneWarn:  "badge bg-amber-100 text-amber-800 dark:bg-amber-900/50 dark:text-amber-100",
	toneBad:   "badge bg-rose-100 text-rose-800 dark:bg-rose-900/50 dark:text-rose-100",
	toneMuted: "badge bg-slate-100 text-slate-800 dark:bg-slate-900/50 dark:text-slate-100",
}

var (
	statusTones = map[string]tone{
		"active": toneGood, "adopted": toneGood, "qualified": toneGood,
		"pending": toneInfo, "new": toneInfo, "contacted": toneInfo,
		"expired": toneWarn, "archived": toneWarn, "ignored": toneWarn,
		"cancelled": toneBad, "lost": toneBad,
	}
	riskTones    = map[string]tone{"critical": toneBad, "high": toneWarn, "medium": toneInfo, "low": toneGood}
	managedTones = map[string]tone{"managed": toneGood, "unmanaged": toneBad}
	roleTones    = map[string]tone{"admin": toneInfo, "viewer": toneMuted}
	healthTones  = map[string]tone{"healthy": toneGood, "never_synced": toneWarn, "stale": toneBad, "not_configured": toneMuted}
)

func badge(tones map[string]tone, value string) string {
	if t, ok := tones[strings.ToLower(strings.TrimSpace(value))]; ok {
		return badgeTones[t]
	}
	return neutralBadge
}

// ListURL builds a list link from path and non-empty filters. Page 1 is implied.
func ListURL(path string, filters url.Values, page int) string {
	q := make(url.Values, len(filters))
	for key, vals := range filters {
		if key == "page" {
			continue
		}
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				q.Add(key, v)
			}
		}
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if encoded := q.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func StatusBadgeClass(status string) string { return badge(statusTones, status) }

func RiskBadgeClass(level string) string { return badge(riskTones, level) }

func ManagedBadgeClass(state string) string { return badge(managedTones, state) }

func AuthUserRoleBadgeClass(role string) string { return badge(roleTones, role) }

// HealthBadgeClass colors a discovery source health state.
func HealthBadgeClass(state string) string { return badge(healthTones, state) }

func AuthUserStatusBadgeClass(active bool) string {
	if active {
		return badgeTones[toneGood]
	}
	return badgeTones[toneWarn]
}

func AuthUserStatusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Disabled"
}

var usageBars = map[string]string{
	"active":   "bg-emerald-500",
	"moderate": "bg-sky-500",
	"inactive": "bg-amber-500",
}

func UsageBucketClass(bucket string) string {
	if class, ok := usageBars[bucket]; ok {
		return class
	}
	return "bg-slate-300"
}

func SourceLabel(source string) string {
	return discovery.SourceDisplayName(source)
}

// Humanize turns snake_case values into "Title case" labels.
func Humanize(value string) string {
	words := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return "—"
	}
	first := []rune(words[0])
	first[0] = unicode.ToUpper(first[0])
	words[0] = string(first)
	return strings.Join(words, " ")
}

func HumanizeAuthUserRole(role string) string {
	role = strings.TrimSpace(role)
	switch strings.ToLower(role) {
	case "":
		return "—"
	case "admin":
		return "Admin"
	case "viewer":
		return "Viewer"
	}
	return role
}

// AlertRole and AlertAriaLive pick how assertively screen readers announce a toast.
func AlertRole(destructive bool) string {
	if destructive {
		return "alert"
	}
	return "status"
}

func AlertAriaLive(destructive bool) string {
	if destructive {
		return "assertive"
	}
	return "polite"
}

// IsActivePath reports whether the nav entry for target covers activePath.
func IsActivePath(activePath, target string) bool {
	activePath, target = strings.TrimSpace(activePath), strings.TrimSpace(target)
	if activePath == target {
		return true
	}
	return target != "/" && strings.HasPrefix(activePath, target+"/")
}

func AriaCurrent(activePath, target string) string {
	if !IsActivePath(activePath, target) {
		return ""
	}
	return "page"
}
