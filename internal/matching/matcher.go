// internal/matching/matcher.go
package matching

import (
	"context"
	"sort"
	"time"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/common/metrics"
	"fostermatch/internal/models"
)

// Source reads pivot and candidate records from the persistence layer.
// Lookups return (nil, nil) when the record does not exist; the List
// methods apply the cheap active-status pre-filter before scoring.
type Source interface {
	GetChild(ctx context.Context, id string) (*models.Child, error)
	GetPreference(ctx context.Context, id string) (*models.Preference, error)
	GetFamily(ctx context.Context, id string) (*models.Family, error)
	ListEligibleFamilies(ctx context.Context) ([]models.Family, error)
	ListEligibleChildren(ctx context.Context) ([]models.Child, error)
}

// Matcher produces a ranked result set for a single pivot.
type Matcher struct {
	src    Source
	agg    *Aggregator
	logger logger.Logger
}

func NewMatcher(src Source, agg *Aggregator, log logger.Logger) *Matcher {
	return &Matcher{src: src, agg: agg, logger: log}
}

// Match returns the ranked, eligible result list for pivotRef. An empty
// candidate pool yields an empty list, not an error.
func (m *Matcher) Match(ctx context.Context, ref PivotRef) ([]models.MatchResult, error) {
	ranked, _, err := m.MatchDetailed(ctx, ref)
	return ranked, err
}

// MatchDetailed additionally returns the scored-but-ineligible candidates,
// which carry their full breakdown for transparency.
func (m *Matcher) MatchDetailed(ctx context.Context, ref PivotRef) (ranked, excluded []models.MatchResult, err error) {
	start := time.Now()

	pivot, err := m.loadPivot(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := m.loadCandidates(ctx, pivot.Kind())
	if err != nil {
		return nil, nil, err
	}

	ranked = make([]models.MatchResult, 0, len(candidates))
	for _, cand := range candidates {
		result := m.agg.Aggregate(pivot, cand)
		metrics.MatchScores.Observe(result.Score)
		if result.Eligible {
			ranked = append(ranked, result)
		} else {
			excluded = append(excluded, result)
		}
	}

	sortResults(ranked)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	metrics.MatchDuration.WithLabelValues(string(ref.Kind)).Observe(time.Since(start).Seconds())
	m.logger.Debug("pivot matched", map[string]interface{}{
		"pivotKind": ref.Kind,
		"pivotId":   ref.ID,
		"ranked":    len(ranked),
		"excluded":  len(excluded),
	})

	return ranked, excluded, nil
}

func (m *Matcher) loadPivot(ctx context.Context, ref PivotRef) (Pivot, error) {
	switch ref.Kind {
	case PivotPreference:
		pref, err := m.src.GetPreference(ctx, ref.ID)
		if err != nil {
			return Pivot{}, err
		}
		if pref == nil {
			return Pivot{}, errors.NewPivotNotFoundError(string(ref.Kind), ref.ID)
		}
		if !pref.EligibleForMatching() {
			return Pivot{}, errors.NewPivotIneligibleError(ref.ID, pref.Status)
		}
		// The owning family supplies coordinates for the distance
		// adjustment; a missing family just means distance unknown.
		family, err := m.src.GetFamily(ctx, pref.FamilyID)
		if err != nil {
			return Pivot{}, err
		}
		return Pivot{Preference: pref, Family: family}, nil

	default:
		child, err := m.src.GetChild(ctx, ref.ID)
		if err != nil {
			return Pivot{}, err
		}
		if child == nil {
			return Pivot{}, errors.NewPivotNotFoundError(string(ref.Kind), ref.ID)
		}
		if !child.EligibleForMatching() {
			return Pivot{}, errors.NewPivotIneligibleError(ref.ID, child.Status)
		}
		return Pivot{Child: child}, nil
	}
}

func (m *Matcher) loadCandidates(ctx context.Context, kind PivotKind) ([]Candidate, error) {
	if kind == PivotPreference {
		children, err := m.src.ListEligibleChildren(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Candidate, len(children))
		for i := range children {
			out[i] = Candidate{Child: &children[i]}
		}
		return out, nil
	}

	families, err := m.src.ListEligibleFamilies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(families))
	for i := range families {
		out[i] = Candidate{Family: &families[i]}
	}
	return out, nil
}

// sortResults orders by score descending, then ascending distance (unknown
// distance sorts last), then candidate id for determinism.
func sortResults(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.DistanceMiles != nil && b.DistanceMiles != nil:
			if *a.DistanceMiles != *b.DistanceMiles {
				return *a.DistanceMiles < *b.DistanceMiles
			}
		case a.DistanceMiles != nil:
			return true
		case b.DistanceMiles != nil:
			return false
		}
		return a.CandidateID < b.CandidateID
	})
}
