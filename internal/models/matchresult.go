// internal/models/matchresult.go
package models

import "time"

// Workflow statuses a caseworker can move a match result through.
const (
	MatchStatusPending          = "Pending"
	MatchStatusRecommended      = "Recommended"
	MatchStatusNotSuitable      = "Not Suitable"
	MatchStatusOnHold           = "On Hold"
	MatchStatusOutreachApproved = "Outreach Approved"
)

// ValidMatchStatus reports whether s is one of the workflow statuses.
func ValidMatchStatus(s string) bool {
	switch s {
	case MatchStatusPending, MatchStatusRecommended, MatchStatusNotSuitable,
		MatchStatusOnHold, MatchStatusOutreachApproved:
		return true
	}
	return false
}

// Priority tiers group criteria in the result breakdown. They do not affect
// scoring math.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// CriterionScore is one entry of a match result's per-criterion breakdown.
type CriterionScore struct {
	Score           float64 `json:"score"`
	Weight          float64 `json:"weight"`
	Priority        string  `json:"priority"`
	PreferenceValue string  `json:"preferenceValue"`
	CandidateValue  string  `json:"candidateValue"`
	Explanation     string  `json:"explanation"`
}

// MatchResult is one scored pivot/candidate pairing. Score is the weighted
// criterion average plus the distance delta; it is not clamped to [0,100]
// unless clamping is enabled in config, so boundary values like 110 or -3
// are possible.
type MatchResult struct {
	ID            string                    `json:"id"`
	PivotID       string                    `json:"pivotId"`
	PivotKind     string                    `json:"pivotKind"`
	CandidateID   string                    `json:"candidateId"`
	CandidateName string                    `json:"candidateName"`
	Score         float64                   `json:"score"`
	Breakdown     map[string]CriterionScore `json:"breakdown"`
	Reasons       []string                  `json:"reasons"`
	Flags         []string                  `json:"flags"`
	DistanceMiles *float64                  `json:"distanceMiles,omitempty"`
	Rank          int                       `json:"rank"`
	Status        string                    `json:"status"`
	Notes         string                    `json:"notes,omitempty"`
	StatusReason  string                    `json:"statusReason,omitempty"`
	CalculatedAt  time.Time                 `json:"calculatedAt"`

	// Eligible is false when a hard eligibility criterion failed. Such
	// results keep their full breakdown but are excluded from ranking.
	Eligible bool `json:"eligible"`
}
