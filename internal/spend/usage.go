package spend

import (
	"sort"
	"strings"
	"time"
)

const (
	activeWithin   = 7 * 24 * time.Hour
	moderateWithin = 30 * 24 * time.Hour
)

// Usage partitions an application's seats by how recently each user was seen.
// Active+Moderate+Inactive+Unassigned always equals Total, which is max(seats, len(users)).
type Usage struct {
	Active     int `json:"active"`
	Moderate   int `json:"moderate"`
	Inactive   int `json:"inactive"`
	Unassigned int `json:"unassigned"`
	Total      int `json:"total"`
}

const (
	UsageActive   = "active"
	UsageModerate = "moderate"
	UsageInactive = "inactive"
)

// UsageBucket classifies one user: seen within 7 days is active, within 30 days moderate,
// otherwise (or never) inactive.
func UsageBucket(user DiscoveredUser, now time.Time) string {
	switch {
	case user.LastSeenAt == nil:
		return UsageInactive
	case now.Sub(*user.LastSeenAt) <= activeWithin:
		return UsageActive
	case now.Sub(*user.LastSeenAt) <= moderateWithin:
		return UsageModerate
	default:
		return UsageInactive
	}
}

func UsageBreakdown(seats int, users []DiscoveredUser, now time.Time) Usage {
	if seats < 0 {
		seats = 0
	}
	var u Usage
	for _, user := range users {
		switch UsageBucket(user, now) {
		case UsageActive:
			u.Active++
		case UsageModerate:
			u.Moderate++
		default:
			u.Inactive++
		}
	}
	if seats > len(users) {
		u.Unassigned = seats - len(users)
	}
	u.Total = u.Active + u.Moderate + u.Inactive + u.Unassigned
	return u
}

// Percent returns n as a whole percentage of the total, 0 when the total is 0.
func (u Usage) Percent(n int) int {
	if u.Total == 0 {
		return 0
	}
	return int(roundDiv(int64(n)*100, int64(u.Total)))
}

type SavingsEstimate struct {
	ReclaimableSeats int     `json:"reclaimableSeats"`
	PerSeatCents     int64   `json:"perSeatCents"`
	MonthlyCents     int64   `json:"monthlyCents"`
	AnnualCents      int64   `json:"annualCents"`
	Percent          float64 `json:"percent"`
}

// Savings estimates what reclaiming inactive and unassigned seats would save.
func Savings(app Application, u Usage) SavingsEstimate {
	out := SavingsEstimate{ReclaimableSeats: u.Inactive + u.Unassigned}
	if u.Total == 0 || app.MonthlyCostCents <= 0 {
		return out
	}
	out.PerSeatCents = roundDiv(app.MonthlyCostCents, int64(u.Total))
	out.MonthlyCents = out.PerSeatCents * int64(out.ReclaimableSeats)
	if out.MonthlyCents > app.MonthlyCostCents {
		out.MonthlyCents = app.MonthlyCostCents
	}
	out.AnnualCents = out.MonthlyCents * 12
	out.Percent = float64(out.MonthlyCents*100) / float64(app.MonthlyCostCents)
	return out
}

// MergeUsers unions two user lists by lowercased email. When both lists know a user the
// later last-seen time wins and empty display names are filled in. Users without an email
// are kept as-is. The result is ordered by email.
func MergeUsers(existing, incoming []DiscoveredUser) []DiscoveredUser {
	byEmail := make(map[string]DiscoveredUser, len(existing)+len(incoming))
	var anonymous []DiscoveredUser
	add := func(u DiscoveredUser) {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			anonymous = append(anonymous, u)
			return
		}
		u.Email = key
		cur, ok := byEmail[key]
		if !ok {
			byEmail[key] = u
			return
		}
		if cur.DisplayName == "" {
			cur.DisplayName = u.DisplayName
		}
		if u.LastSeenAt != nil && (cur.LastSeenAt == nil || u.LastSeenAt.After(*cur.LastSeenAt)) {
			seen := *u.LastSeenAt
			cur.LastSeenAt = &seen
			if u.Source != "" {
				cur.Source = u.Source
			}
		}
		byEmail[key] = cur
	}
	for _, u := range existing {
		add(u)
	}
	for _, u := range incoming {
		add(u)
	}

	out := make([]DiscoveredUser, 0, len(byEmail)+len(anonymous))
	for _, u := range byEmail {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return append(out, anonymous...)
}

// MergeScopes unions two scope lists, dropping blanks and duplicates, sorted.
func MergeScopes(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, scope := range list {
			scope = strings.TrimSpace(scope)
			if scope == "" {
				continue
			}
			if _, ok := seen[scope]; ok {
				continue
			}
			seen[scope] = struct{}{}
			out = append(out, scope)
		}
	}
	sort.Strings(out)
	return out
}
