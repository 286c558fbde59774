// internal/matching/criteria.go
package matching

import (
	"fmt"
	"strconv"

	"fostermatch/internal/models"
)

// Explanation used whenever no preference was expressed. Absence of a
// constraint never penalizes a candidate.
const explanationNoPreference = "No Preference"

const (
	scoreFull    = 100.0
	scorePartial = 60.0
	// decayPerUnit is the linear penalty per unit outside a numeric range
	// (years for age, seats for capacity).
	decayPerUnit = 10.0
)

// ==========================
// Evaluator primitives
// ==========================

// evalNoPreference is the neutral pass for an absent preference value.
func evalNoPreference(candValue string) Evaluation {
	return Evaluation{
		Score:          scoreFull,
		CandidateValue: candValue,
		Explanation:    explanationNoPreference,
	}
}

// evalCategorical scores an exact-match criterion: match 100, mismatch 0.
func evalCategorical(pref, cand string) Evaluation {
	if pref == "" {
		return evalNoPreference(cand)
	}
	ev := Evaluation{PreferenceValue: pref, CandidateValue: cand}
	if pref == cand {
		ev.Score = scoreFull
		ev.Explanation = fmt.Sprintf("Matches preferred %q", pref)
	} else {
		ev.Score = 0
		ev.Explanation = fmt.Sprintf("Does not match preferred %q", pref)
	}
	return ev
}

// evalRange scores a numeric-range criterion. Inside the range scores 100;
// outside, the score decays linearly with distance from the nearest bound,
// floored at 0.
func evalRange(min, max *int, value int) Evaluation {
	if min == nil && max == nil {
		return evalNoPreference(strconv.Itoa(value))
	}

	ev := Evaluation{
		PreferenceValue: rangeLabel(min, max),
		CandidateValue:  strconv.Itoa(value),
	}

	var distance int
	switch {
	case min != nil && value < *min:
		distance = *min - value
	case max != nil && value > *max:
		distance = value - *max
	}

	if distance == 0 {
		ev.Score = scoreFull
		ev.Explanation = fmt.Sprintf("%d is within %s", value, ev.PreferenceValue)
		return ev
	}

	score := scoreFull - decayPerUnit*float64(distance)
	if score < 0 {
		score = 0
	}
	ev.Score = score
	ev.Explanation = fmt.Sprintf("%d is %d outside %s", value, distance, ev.PreferenceValue)
	return ev
}

func rangeLabel(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d", *min, *max)
	case min != nil:
		return fmt.Sprintf(">=%d", *min)
	default:
		return fmt.Sprintf("<=%d", *max)
	}
}

// evalStatusGate scores a required-status criterion: the candidate field
// must equal the approved value. A miss scores 0 and raises a flag.
func evalStatusGate(label, required, actual string) Evaluation {
	ev := Evaluation{PreferenceValue: required, CandidateValue: actual}
	if actual == required {
		ev.Score = scoreFull
		ev.Explanation = fmt.Sprintf("%s is %q", label, actual)
		return ev
	}
	ev.Score = 0
	ev.Explanation = fmt.Sprintf("%s is %q, requires %q", label, actual, required)
	ev.Flag = fmt.Sprintf("%s is %q", label, actual)
	return ev
}

// evalCapability scores a boolean capability: the candidate must be at
// least as capable as the requirement. Unmet requirement scores 0 and
// raises a flag; met or over-qualified scores 100.
func evalCapability(required, capable bool, flagMsg string) Evaluation {
	ev := Evaluation{
		PreferenceValue: strconv.FormatBool(required),
		CandidateValue:  strconv.FormatBool(capable),
	}
	if !required {
		ev.Score = scoreFull
		ev.Explanation = "Not required"
		return ev
	}
	if capable {
		ev.Score = scoreFull
		ev.Explanation = "Requirement met"
		return ev
	}
	ev.Score = 0
	ev.Explanation = flagMsg
	ev.Flag = flagMsg
	return ev
}

// ==========================
// Criterion sets
// ==========================

// Weights within each set sum to 100; the aggregator normalizes by the
// weight sum, so the total is the normalization basis for the overall
// score before the distance adjustment.

// childToFamilyCriteria scores a child pivot against family candidates.
var childToFamilyCriteria = []Criterion{
	{
		Key: "license_status", Label: "License Status",
		Priority: models.PriorityHigh, Weight: 15, Hard: true,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalStatusGate("License", models.LicenseStatusActive, c.Family.LicenseStatus)
		},
	},
	{
		Key: "background_check", Label: "Background Check",
		Priority: models.PriorityHigh, Weight: 15, Hard: true,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalStatusGate("Background check", models.BackgroundCheckStatusClear, c.Family.BackgroundCheckStatus)
		},
	},
	{
		Key: "training_status", Label: "Training Status",
		Priority: models.PriorityHigh, Weight: 10, Hard: true,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalStatusGate("Training", models.TrainingStatusCompleted, c.Family.TrainingStatus)
		},
	},
	{
		Key: "capacity", Label: "Available Capacity",
		Priority: models.PriorityHigh, Weight: 15, Hard: true,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			ev := Evaluation{
				PreferenceValue: ">=1",
				CandidateValue:  strconv.Itoa(c.Family.AvailableCapacity),
			}
			if c.Family.AvailableCapacity > 0 {
				ev.Score = scoreFull
				ev.Explanation = fmt.Sprintf("%d placement slots open", c.Family.AvailableCapacity)
				return ev
			}
			ev.Score = 0
			ev.Explanation = "No available capacity"
			ev.Flag = "No available capacity"
			return ev
		},
	},
	{
		Key: "age_range", Label: "Age Range",
		Priority: models.PriorityHigh, Weight: 20,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalRange(c.Family.AcceptsAgeMin, c.Family.AcceptsAgeMax, p.Child.Age)
		},
	},
	{
		Key: "special_needs", Label: "Special Needs Capability",
		Priority: models.PriorityMedium, Weight: 10,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalCapability(p.Child.SpecialNeeds, c.Family.SpecialNeedsCapable,
				"Family not equipped for special needs")
		},
	},
	{
		Key: "jurisdiction", Label: "Jurisdiction",
		Priority: models.PriorityMedium, Weight: 10,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalCategorical(p.Child.Jurisdiction, c.Family.Jurisdiction)
		},
	},
	{
		Key: "gender", Label: "Gender Preference",
		Priority: models.PriorityLow, Weight: 5,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			// The family's stated gender preference is the constraint
			// here; the child's gender is the candidate value.
			return evalCategorical(c.Family.GenderPreference, p.Child.Gender)
		},
	},
}

// preferenceToChildCriteria scores a family preference pivot against child
// candidates.
var preferenceToChildCriteria = []Criterion{
	{
		Key: "child_status", Label: "Child Status",
		Priority: models.PriorityHigh, Weight: 20, Hard: true,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			ev := Evaluation{
				PreferenceValue: models.ChildStatusNeedsPlacement,
				CandidateValue:  c.Child.Status,
			}
			if c.Child.EligibleForMatching() {
				ev.Score = scoreFull
				ev.Explanation = fmt.Sprintf("Child status %q is placeable", c.Child.Status)
				return ev
			}
			ev.Score = 0
			ev.Explanation = fmt.Sprintf("Child status %q is not placeable", c.Child.Status)
			ev.Flag = fmt.Sprintf("Child status is %q", c.Child.Status)
			return ev
		},
	},
	{
		Key: "age_range", Label: "Age Range",
		Priority: models.PriorityHigh, Weight: 30,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalRange(p.Preference.AgeMin, p.Preference.AgeMax, c.Child.Age)
		},
	},
	{
		Key: "special_needs", Label: "Special Needs Willingness",
		Priority: models.PriorityMedium, Weight: 20,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			if !c.Child.SpecialNeeds {
				return Evaluation{
					Score:           scoreFull,
					PreferenceValue: p.Preference.SpecialNeedsWilling,
					CandidateValue:  "false",
					Explanation:     "Not required",
				}
			}
			ev := Evaluation{
				PreferenceValue: p.Preference.SpecialNeedsWilling,
				CandidateValue:  "true",
			}
			switch p.Preference.SpecialNeedsWilling {
			case models.SpecialNeedsYes, "":
				ev.Score = scoreFull
				ev.Explanation = "Willing to care for special needs"
			case models.SpecialNeedsWillingToConsider:
				// Partial-credit tier.
				ev.Score = scorePartial
				ev.Explanation = "Willing to consider special needs"
			default:
				ev.Score = 0
				ev.Explanation = "Family declined special needs placements"
				ev.Flag = "Family declined special needs placements"
			}
			return ev
		},
	},
	{
		Key: "jurisdiction", Label: "Jurisdiction",
		Priority: models.PriorityMedium, Weight: 20,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalCategorical(p.Preference.Jurisdiction, c.Child.Jurisdiction)
		},
	},
	{
		Key: "gender", Label: "Gender",
		Priority: models.PriorityLow, Weight: 10,
		Evaluate: func(p Pivot, c Candidate) Evaluation {
			return evalCategorical(p.Preference.Gender, c.Child.Gender)
		},
	},
}

// CriteriaFor returns the criterion set for a pivot kind.
func CriteriaFor(kind PivotKind) []Criterion {
	if kind == PivotPreference {
		return preferenceToChildCriteria
	}
	return childToFamilyCriteria
}
