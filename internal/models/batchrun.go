// internal/models/batchrun.go
package models

import "time"

// Batch run statuses. Idle -> Running -> (Completed | CompletedWithErrors).
const (
	BatchStatusIdle                = "Idle"
	BatchStatusRunning             = "Running"
	BatchStatusCompleted           = "Completed"
	BatchStatusCompletedWithErrors = "CompletedWithErrors"
)

// BatchRunState is a snapshot of the in-flight or last-completed
// recalculation run. The batch engine is its single writer; everything else
// reads snapshots.
type BatchRunState struct {
	Status       string     `json:"status"`
	Running      bool       `json:"running"`
	Processed    int        `json:"processed"`
	Total        int        `json:"total"`
	Failed       int        `json:"failed"`
	FailedPivots []string   `json:"failedPivots,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
}

// RecordChange describes a source-record mutation delivered by the trigger
// layer. The scheduler uses it to decide whether a change is scoring-relevant.
type RecordChange struct {
	Entity        string   `json:"entity"`     // "child" | "family" | "preference"
	ChangeType    string   `json:"changeType"` // "insert" | "update" | "delete"
	RecordID      string   `json:"recordId"`
	ChangedFields []string `json:"changedFields,omitempty"`
	OldStatus     string   `json:"oldStatus,omitempty"`
	NewStatus     string   `json:"newStatus,omitempty"`
}
