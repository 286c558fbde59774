// internal/workers/placement/update-match-status/models.go
package updatematchstatus

type Input struct {
	ResultID string `json:"resultId"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
	// Reason is required when moving a match to Not Suitable.
	Reason string `json:"reasonIfNotSuitable,omitempty"`
}

type Output struct {
	ResultID    string  `json:"resultId"`
	Status      string  `json:"status"`
	CandidateID string  `json:"candidateId"`
	Score       float64 `json:"score"`
	UpdatedAt   string  `json:"updatedAt"`
}
