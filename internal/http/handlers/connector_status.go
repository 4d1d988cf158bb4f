package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
)

const (
	healthNotConfigured = "not_configured"
	healthNeverSynced   = "never_synced"
	healthHealthy       = "healthy"
	healthStale         = "stale"
)

// A source is stale after missing four sync intervals, clamped to [2h, 72h].
const (
	staleFloor   = 2 * time.Hour
	staleCeiling = 72 * time.Hour
)

func staleAfter(interval time.Duration) time.Duration {
	return min(max(4*interval, staleFloor), staleCeiling)
}

// gradeSource fills in the health columns of item from the newest observation the source
// produced. A zero lastSeen means it never produced one.
func gradeSource(item *viewmodels.SourceStatusItem, interval time.Duration, now, lastSeen time.Time) string {
	state := healthHealthy
	switch {
	case !item.Enabled:
		state = healthNotConfigured
	case lastSeen.IsZero():
		state = healthNeverSynced
	case now.Sub(lastSeen) > staleAfter(interval):
		state = healthStale
	}
	item.Health = views.Humanize(state)
	item.HealthCSS = views.HealthBadgeClass(state)
	item.LastSeen = "—"
	if !lastSeen.IsZero() {
		item.LastSeen = ago(now.Sub(lastSeen))
	}
	item.Attention = state == healthNeverSynced || state == healthStale
	return state
}

func ago(d time.Duration) string {
	switch d = max(d, 0); {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	}
	return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
}

// compactDuration renders d as its two largest units, dropping zero parts: 90s is "1m 30s".
func compactDuration(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	big, small := time.Minute, time.Second
	bigUnit, smallUnit := "m", "s"
	if d >= time.Hour {
		big, small = time.Hour, time.Minute
		bigUnit, smallUnit = "h", "m"
	}
	parts := []string{fmt.Sprintf("%d%s", int(d/big), bigUnit)}
	if rest := int((d % big) / small); rest > 0 {
		parts = append(parts, fmt.Sprintf("%d%s", rest, smallUnit))
	}
	return strings.Join(parts, " ")
}
