// internal/matching/aggregate.go
package matching

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"fostermatch/internal/models"
)

const (
	reasonThreshold   = 80.0
	lowScoreThreshold = 40.0
)

// Aggregator combines weighted criterion scores and the distance adjustment
// into an unsaved MatchResult.
type Aggregator struct {
	clamp bool
}

// NewAggregator returns an aggregator. clamp bounds overall scores to
// [0,100]; the production default leaves scores unclamped so the distance
// delta can push them past either bound.
func NewAggregator(clamp bool) *Aggregator {
	return &Aggregator{clamp: clamp}
}

// Aggregate scores one candidate against one pivot. Candidates failing a
// hard eligibility criterion are still fully scored (Eligible=false) so the
// breakdown stays transparent; only ranking excludes them.
func (a *Aggregator) Aggregate(pivot Pivot, cand Candidate) models.MatchResult {
	criteria := CriteriaFor(pivot.Kind())

	breakdown := make(map[string]models.CriterionScore, len(criteria))
	reasons := make([]string, 0, len(criteria))
	flags := make([]string, 0, 2)
	eligible := true

	var weightedSum, weightTotal float64
	for _, crit := range criteria {
		ev := crit.Evaluate(pivot, cand)

		breakdown[crit.Key] = models.CriterionScore{
			Score:           ev.Score,
			Weight:          crit.Weight,
			Priority:        crit.Priority,
			PreferenceValue: ev.PreferenceValue,
			CandidateValue:  ev.CandidateValue,
			Explanation:     ev.Explanation,
		}
		weightedSum += ev.Score * crit.Weight
		weightTotal += crit.Weight

		if ev.Score >= reasonThreshold {
			reasons = append(reasons, fmt.Sprintf("%s: %s", crit.Label, ev.Explanation))
		}

		if crit.Hard && ev.Score <= 0 {
			eligible = false
			flag := ev.Flag
			if flag == "" {
				flag = crit.Label
			}
			flags = append(flags, "Ineligible: "+flag)
			continue
		}
		if ev.Flag != "" {
			flags = append(flags, ev.Flag)
		} else if ev.Score < lowScoreThreshold {
			flags = append(flags, "Low score: "+crit.Label)
		}
	}

	overall := weightedSum / weightTotal

	distance := DistanceBetween(pivot.Coordinates(), cand.Coordinates())
	if distance == nil {
		flags = append(flags, FlagDistanceUnavailable)
	} else {
		overall += float64(DistanceDelta(*distance))
	}

	if a.clamp {
		if overall > 100 {
			overall = 100
		} else if overall < 0 {
			overall = 0
		}
	}

	return models.MatchResult{
		ID:            uuid.NewString(),
		PivotID:       pivot.ID(),
		PivotKind:     string(pivot.Kind()),
		CandidateID:   cand.ID(),
		CandidateName: cand.Name(),
		Score:         overall,
		Breakdown:     breakdown,
		Reasons:       reasons,
		Flags:         flags,
		DistanceMiles: distance,
		Status:        models.MatchStatusPending,
		CalculatedAt:  time.Now().UTC(),
		Eligible:      eligible,
	}
}
