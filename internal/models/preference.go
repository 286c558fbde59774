// internal/models/preference.go
package models

// Preference statuses. Only Active preferences are matched.
const (
	PreferenceStatusActive   = "Active"
	PreferenceStatusInactive = "Inactive"
)

// Special-needs willingness tiers declared on a preference.
const (
	SpecialNeedsYes               = "Yes"
	SpecialNeedsWillingToConsider = "Willing to Consider"
	SpecialNeedsNo                = "No"
)

// Preference is a family's stated desiderata for a placement. It is the
// pivot when matching in the family-to-child direction.
type Preference struct {
	ID                  string `json:"id"`
	FamilyID            string `json:"familyId"`
	Status              string `json:"status"`
	AgeMin              *int   `json:"ageMin,omitempty"`
	AgeMax              *int   `json:"ageMax,omitempty"`
	Gender              string `json:"gender,omitempty"`
	Jurisdiction        string `json:"jurisdiction,omitempty"`
	SpecialNeedsWilling string `json:"specialNeedsWilling,omitempty"`
	DesiredCapacity     *int   `json:"desiredCapacity,omitempty"`
}

// EligibleForMatching reports whether the preference can be a matching pivot.
func (p *Preference) EligibleForMatching() bool {
	return p.Status == PreferenceStatusActive
}
