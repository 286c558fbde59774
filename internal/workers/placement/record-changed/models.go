// internal/workers/placement/record-changed/models.go
package recordchanged

type Input struct {
	Entity        string   `json:"entity"`     // "child" | "family" | "preference"
	ChangeType    string   `json:"changeType"` // "insert" | "update" | "delete"
	RecordID      string   `json:"recordId"`
	ChangedFields []string `json:"changedFields,omitempty"`
	OldStatus     string   `json:"oldStatus,omitempty"`
	NewStatus     string   `json:"newStatus,omitempty"`
}

type Output struct {
	Relevant  bool   `json:"relevant"`
	Scheduled bool   `json:"scheduled"`
	Message   string `json:"message,omitempty"`
}
