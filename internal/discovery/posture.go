package discovery

import (
	"strings"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
)

const minFreshnessWindow = 24 * time.Hour

// ManagedStateAndReason classifies a discovery as managed when it is linked to an
// application in the inventory and its source has reported it recently.
func ManagedStateAndReason(input ManagedStateInput) (string, string) {
	if input.Ignored {
		return ManagedStateUnmanaged, ManagedReasonIgnored
	}
	if !input.HasApplication {
		return ManagedStateUnmanaged, ManagedReasonNotLinked
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	window := input.FreshnessWindow
	if window < minFreshnessWindow {
		window = minFreshnessWindow
	}
	if input.LastSeenAt.IsZero() || now.Sub(input.LastSeenAt.UTC()) > window {
		return ManagedStateUnmanaged, ManagedReasonStaleSync
	}

	return ManagedStateManaged, ManagedReasonLinkedFreshSync
}

func RiskScoreAndLevel(input RiskInput) (int32, string) {
	score := 0
	managed := strings.EqualFold(strings.TrimSpace(input.ManagedState), ManagedStateManaged)

	if !managed {
		score += 45
	}
	if input.HasPrivilegedScopes {
		score += 20
	} else if input.HasConfidentialScopes {
		score += 10
	}
	if !input.HasOwner {
		score += 15
	}
	switch {
	case input.UserCount >= 50:
		score += 10
	case input.UserCount >= 10:
		score += 5
	}
	if !managed && input.ActiveUsers > 0 {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int32(score), RiskLevelFromScore(int32(score))
}

func RiskLevelFromScore(score int32) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 30:
		return "medium"
	default:
		return "low"
	}
}

// Posture is the managed state and risk of one discovery.
type Posture struct {
	ManagedState string
	Reason       string
	RiskScore    int32
	RiskLevel    string
	ActiveUsers  int
}

// Assess derives the posture of d at now. Active users are those seen in the last 30 days.
func Assess(d spend.Discovery, now time.Time, freshness time.Duration) Posture {
	state, reason := ManagedStateAndReason(ManagedStateInput{
		HasApplication:  d.Managed(),
		Ignored:         d.State == spend.DiscoveryStateIgnored,
		LastSeenAt:      d.LastSeenAt,
		FreshnessWindow: freshness,
		Now:             now,
	})
	active := 0
	for _, u := range d.Users {
		if u.LastSeenAt != nil && now.Sub(*u.LastSeenAt) <= 30*24*time.Hour {
			active++
		}
	}
	users := d.UserCount
	if users < len(d.Users) {
		users = len(d.Users)
	}
	score, level := RiskScoreAndLevel(RiskInput{
		ManagedState:          state,
		HasPrivilegedScopes:   HasPrivilegedScopes(d.Scopes),
		HasConfidentialScopes: HasConfidentialScopes(d.Scopes),
		HasOwner:              d.Managed(),
		UserCount:             users,
		ActiveUsers:           active,
	})
	return Posture{
		ManagedState: state,
		Reason:       reason,
		RiskScore:    score,
		RiskLevel:    level,
		ActiveUsers:  active,
	}
}
