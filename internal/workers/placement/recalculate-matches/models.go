// internal/workers/placement/recalculate-matches/models.go
package recalculatematches

import "fostermatch/internal/models"

type Input struct {
	// PivotKind and PivotID scope the recalculation to one pivot. Leave
	// both empty to request a full run.
	PivotKind string `json:"pivotKind,omitempty"`
	PivotID   string `json:"pivotId,omitempty"`
	// StatusOnly asks for the current batch state without triggering
	// anything.
	StatusOnly bool `json:"statusOnly,omitempty"`
}

type Output struct {
	Accepted bool                 `json:"accepted"`
	Scope    string               `json:"scope,omitempty"`
	Message  string               `json:"message,omitempty"`
	Batch    models.BatchRunState `json:"batch"`
}
