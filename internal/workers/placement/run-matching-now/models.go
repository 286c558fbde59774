// internal/workers/placement/run-matching-now/models.go
package runmatchingnow

import "fostermatch/internal/models"

type Input struct {
	PivotKind string `json:"pivotKind"`
	PivotID   string `json:"pivotId"`
	// Persist stores the ranked set, replacing the pivot's previous
	// results; off by default so ad hoc runs are read-only.
	Persist bool `json:"persist,omitempty"`
}

type Output struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
	Results       []models.MatchResult `json:"results"`
	ExcludedCount int                  `json:"excludedCount"`
}
