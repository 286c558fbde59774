// internal/matching/types.go
package matching

import "fostermatch/internal/models"

// PivotKind identifies which direction a match runs in.
type PivotKind string

const (
	// PivotChild matches a child against candidate families.
	PivotChild PivotKind = "child"
	// PivotPreference matches a family preference against candidate children.
	PivotPreference PivotKind = "preference"
)

// ValidPivotKind reports whether k names a known pivot kind.
func ValidPivotKind(k string) bool {
	return PivotKind(k) == PivotChild || PivotKind(k) == PivotPreference
}

// PivotRef identifies one matching pivot.
type PivotRef struct {
	Kind PivotKind `json:"kind"`
	ID   string    `json:"id"`
}

func (r PivotRef) IsZero() bool {
	return r.ID == ""
}

// Pivot is the fully loaded subject being matched from. Exactly one of
// Child or Preference is set; Family accompanies a Preference pivot so the
// distance adjustment has the family's coordinates.
type Pivot struct {
	Child      *models.Child
	Preference *models.Preference
	Family     *models.Family
}

// Kind returns the pivot kind.
func (p Pivot) Kind() PivotKind {
	if p.Preference != nil {
		return PivotPreference
	}
	return PivotChild
}

// ID returns the pivot record id.
func (p Pivot) ID() string {
	if p.Preference != nil {
		return p.Preference.ID
	}
	if p.Child != nil {
		return p.Child.ID
	}
	return ""
}

// Coordinates returns the pivot-side geocoordinates, nil when unknown.
func (p Pivot) Coordinates() *models.Coordinates {
	if p.Preference != nil {
		if p.Family == nil {
			return nil
		}
		return p.Family.Coordinates
	}
	if p.Child != nil {
		return p.Child.Coordinates
	}
	return nil
}

// Candidate is the subject being matched to. Exactly one of Family or
// Child is set, mirroring the pivot direction.
type Candidate struct {
	Family *models.Family
	Child  *models.Child
}

// ID returns the candidate record id.
func (c Candidate) ID() string {
	if c.Family != nil {
		return c.Family.ID
	}
	if c.Child != nil {
		return c.Child.ID
	}
	return ""
}

// Name returns the candidate display name.
func (c Candidate) Name() string {
	if c.Family != nil {
		return c.Family.Name
	}
	if c.Child != nil {
		return c.Child.Name
	}
	return ""
}

// Coordinates returns the candidate-side geocoordinates, nil when unknown.
func (c Candidate) Coordinates() *models.Coordinates {
	if c.Family != nil {
		return c.Family.Coordinates
	}
	if c.Child != nil {
		return c.Child.Coordinates
	}
	return nil
}

// Evaluation is the outcome of one criterion against one candidate.
type Evaluation struct {
	Score           float64
	PreferenceValue string
	CandidateValue  string
	Explanation     string

	// Flag carries a hard-warning string raised by the evaluator itself
	// (unmet capability, status mismatch). Empty when nothing is wrong.
	Flag string
}

// Criterion is one named, weighted scoring rule. Criteria are stateless;
// Evaluate must be deterministic for identical inputs.
type Criterion struct {
	Key      string
	Label    string
	Priority string
	Weight   float64

	// Hard marks an eligibility criterion: scoring 0 excludes the
	// candidate from the ranked list (it stays in the breakdown).
	Hard bool

	Evaluate func(p Pivot, c Candidate) Evaluation
}
