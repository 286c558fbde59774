// internal/models/family.go
package models

// Approved values for family eligibility status fields. A family is only
// eligible for placement when all three equal their approved value.
const (
	LicenseStatusActive        = "Active"
	BackgroundCheckStatusClear = "Clear"
	TrainingStatusCompleted    = "Completed"
)

// Family is a licensed foster family record.
type Family struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	LicenseStatus         string       `json:"licenseStatus"`
	BackgroundCheckStatus string       `json:"backgroundCheckStatus"`
	TrainingStatus        string       `json:"trainingStatus"`
	AvailableCapacity     int          `json:"availableCapacity"`
	Jurisdiction          string       `json:"jurisdiction"`
	SpecialNeedsCapable   bool         `json:"specialNeedsCapable"`
	GenderPreference      string       `json:"genderPreference,omitempty"`
	AcceptsAgeMin         *int         `json:"acceptsAgeMin,omitempty"`
	AcceptsAgeMax         *int         `json:"acceptsAgeMax,omitempty"`
	Coordinates           *Coordinates `json:"coordinates,omitempty"`
}

// Eligible reports whether all hard status gates pass and at least one
// placement slot is open.
func (f *Family) Eligible() bool {
	return f.LicenseStatus == LicenseStatusActive &&
		f.BackgroundCheckStatus == BackgroundCheckStatusClear &&
		f.TrainingStatus == TrainingStatusCompleted &&
		f.AvailableCapacity > 0
}
