// internal/models/child.go
package models

// Child lifecycle statuses. Only Active and Needs Placement children
// participate in matching.
const (
	ChildStatusActive         = "Active"
	ChildStatusNeedsPlacement = "Needs Placement"
	ChildStatusPlaced         = "Placed"
	ChildStatusInactive       = "Inactive"
)

// Coordinates is a geocoded point. Entities that have not been geocoded
// carry a nil *Coordinates.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Child is a child record as read from the persistence layer.
type Child struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Status       string       `json:"status"`
	Age          int          `json:"age"`
	Gender       string       `json:"gender"`
	Jurisdiction string       `json:"jurisdiction"`
	SpecialNeeds bool         `json:"specialNeeds"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// EligibleForMatching reports whether the child can be a matching pivot.
func (c *Child) EligibleForMatching() bool {
	return c.Status == ChildStatusActive || c.Status == ChildStatusNeedsPlacement
}
