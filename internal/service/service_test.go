package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/batch"
	"fostermatch/internal/common/config"
	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
)

// ==========================
// Test fakes
// ==========================

type fakeSource struct {
	children map[string]*models.Child
	families map[string]*models.Family
}

func (f *fakeSource) GetChild(ctx context.Context, id string) (*models.Child, error) {
	return f.children[id], nil
}

func (f *fakeSource) GetPreference(ctx context.Context, id string) (*models.Preference, error) {
	return nil, nil
}

func (f *fakeSource) GetFamily(ctx context.Context, id string) (*models.Family, error) {
	return f.families[id], nil
}

func (f *fakeSource) ListEligibleFamilies(ctx context.Context) ([]models.Family, error) {
	var out []models.Family
	for _, fam := range f.families {
		if fam.Eligible() {
			out = append(out, *fam)
		}
	}
	return out, nil
}

func (f *fakeSource) ListEligibleChildren(ctx context.Context) ([]models.Child, error) {
	return nil, nil
}

type fakeResultStore struct {
	replaced map[string]int
	results  map[string]*models.MatchResult
	statuses map[string]string
	reasons  map[string]string
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{
		replaced: make(map[string]int),
		results:  make(map[string]*models.MatchResult),
		statuses: make(map[string]string),
		reasons:  make(map[string]string),
	}
}

func (f *fakeResultStore) ListEligiblePivots(ctx context.Context) ([]matching.PivotRef, error) {
	return nil, nil
}

func (f *fakeResultStore) ReplaceResults(ctx context.Context, ref matching.PivotRef, results []models.MatchResult) error {
	f.replaced[string(ref.Kind)+":"+ref.ID]++
	return nil
}

func (f *fakeResultStore) GetCurrentResults(ctx context.Context, ref matching.PivotRef) ([]models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultStore) GetResult(ctx context.Context, id string) (*models.MatchResult, error) {
	r, ok := f.results[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	if status, ok := f.statuses[id]; ok {
		copied.Status = status
	}
	copied.StatusReason = f.reasons[id]
	return &copied, nil
}

func (f *fakeResultStore) UpdateResultStatus(ctx context.Context, id, status, notes, reason string) error {
	if _, ok := f.results[id]; !ok {
		return errors.NewResultNotFoundError(id)
	}
	f.statuses[id] = status
	f.reasons[id] = reason
	return nil
}

// ==========================
// Fixtures
// ==========================

func eligibleFamily(id string) *models.Family {
	return &models.Family{
		ID:                    id,
		Name:                  "Family " + id,
		LicenseStatus:         models.LicenseStatusActive,
		BackgroundCheckStatus: models.BackgroundCheckStatusClear,
		TrainingStatus:        models.TrainingStatusCompleted,
		AvailableCapacity:     1,
	}
}

func placeableChild(id string) *models.Child {
	return &models.Child{
		ID:     id,
		Name:   "Child " + id,
		Status: models.ChildStatusNeedsPlacement,
		Age:    8,
	}
}

func newTestService(t *testing.T, src matching.Source, store *fakeResultStore) *Service {
	log := logger.NewTestLogger(t)
	matcher := matching.NewMatcher(src, matching.NewAggregator(false), log)
	engine := batch.NewEngine(matcher, store, nil, nil, config.MatchingConfig{ChunkSize: 10}, log)
	scheduler := batch.NewScheduler(engine, nil, 50*time.Millisecond, log)
	t.Cleanup(scheduler.Stop)
	return New(matcher, engine, scheduler, store, log)
}

// ==========================
// Tests
// ==========================

func TestRunMatchingNow_Success(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{"c1": placeableChild("c1")},
		families: map[string]*models.Family{
			"f1": eligibleFamily("f1"),
			"f2": eligibleFamily("f2"),
		},
	}
	store := newFakeResultStore()
	svc := newTestService(t, src, store)

	resp, err := svc.RunMatchingNow(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "c1"}, false)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Results, 2)
	// persist=false leaves storage untouched.
	assert.Empty(t, store.replaced)
}

func TestRunMatchingNow_PersistReplacesResults(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{"c1": placeableChild("c1")},
		families: map[string]*models.Family{"f1": eligibleFamily("f1")},
	}
	store := newFakeResultStore()
	svc := newTestService(t, src, store)

	resp, err := svc.RunMatchingNow(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "c1"}, true)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, store.replaced["child:c1"])
}

func TestRunMatchingNow_MissingPivotIsStructuredFailure(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, newFakeResultStore())

	resp, err := svc.RunMatchingNow(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "ghost"}, false)

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "not found")
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestRunMatchingNow_IneligiblePivotIsStructuredFailure(t *testing.T) {
	child := placeableChild("c1")
	child.Status = models.ChildStatusPlaced
	svc := newTestService(t, &fakeSource{
		children: map[string]*models.Child{"c1": child},
	}, newFakeResultStore())

	resp, err := svc.RunMatchingNow(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "c1"}, false)

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestTriggerRecalculation_PivotScopedRunsSynchronously(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{"c1": placeableChild("c1")},
		families: map[string]*models.Family{"f1": eligibleFamily("f1")},
	}
	store := newFakeResultStore()
	svc := newTestService(t, src, store)

	resp, err := svc.TriggerRecalculation(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "c1"})

	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "pivot", resp.Scope)
	assert.Equal(t, 1, store.replaced["child:c1"])
}

func TestTriggerRecalculation_FullRunIsAcknowledged(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, newFakeResultStore())

	resp, err := svc.TriggerRecalculation(context.Background(), matching.PivotRef{})

	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "full", resp.Scope)
}

func TestGetBatchStatus_StartsIdle(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, newFakeResultStore())

	status := svc.GetBatchStatus(context.Background())
	assert.Equal(t, models.BatchStatusIdle, status.Status)
	assert.False(t, status.Running)
}

func TestUpdateMatchStatus(t *testing.T) {
	store := newFakeResultStore()
	store.results["r1"] = &models.MatchResult{
		ID: "r1", Status: models.MatchStatusPending, Score: 90,
	}
	svc := newTestService(t, &fakeSource{}, store)

	tests := []struct {
		name       string
		resultID   string
		status     string
		notes      string
		reason     string
		wantErr    bool
		validation bool
		notFound   bool
	}{
		{
			name:     "valid transition",
			resultID: "r1",
			status:   models.MatchStatusRecommended,
		},
		{
			name:     "on hold with notes",
			resultID: "r1",
			status:   models.MatchStatusOnHold,
			notes:    "awaiting home study",
		},
		{
			name:       "not suitable requires a reason",
			resultID:   "r1",
			status:     models.MatchStatusNotSuitable,
			wantErr:    true,
			validation: true,
		},
		{
			name:       "notes alone do not satisfy the reason requirement",
			resultID:   "r1",
			status:     models.MatchStatusNotSuitable,
			notes:      "see case file",
			wantErr:    true,
			validation: true,
		},
		{
			name:     "not suitable with reason",
			resultID: "r1",
			status:   models.MatchStatusNotSuitable,
			reason:   "family relocating out of state",
		},
		{
			name:       "unknown status",
			resultID:   "r1",
			status:     "Archived",
			wantErr:    true,
			validation: true,
		},
		{
			name:     "missing result",
			resultID: "ghost",
			status:   models.MatchStatusRecommended,
			wantErr:  true,
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := svc.UpdateMatchStatus(context.Background(), tt.resultID, tt.status, tt.notes, tt.reason)
			if tt.wantErr {
				require.Error(t, err)
				if tt.validation {
					assert.True(t, errors.IsValidation(err))
				}
				if tt.notFound {
					assert.True(t, errors.IsNotFound(err))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, updated.Status)
			assert.Equal(t, tt.reason, updated.StatusReason)
		})
	}
}

func TestUpdateMatchStatus_ValidationFailureHasNoSideEffect(t *testing.T) {
	store := newFakeResultStore()
	store.results["r1"] = &models.MatchResult{ID: "r1", Status: models.MatchStatusPending}
	svc := newTestService(t, &fakeSource{}, store)

	_, err := svc.UpdateMatchStatus(context.Background(), "r1", models.MatchStatusNotSuitable, "", "")
	require.Error(t, err)

	current, err := store.GetResult(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, current.Status)
}
