package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	var out []models.Child
	for _, c := range f.children {
		if c.EligibleForMatching() {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeResultStore struct {
	mu        sync.Mutex
	pivots    []matching.PivotRef
	listCalls int
	persisted map[string]int
	failWith  map[string]error // pivot key -> error returned once per call
	failCount map[string]int   // how many times to fail before succeeding
}

func newFakeResultStore(pivots ...matching.PivotRef) *fakeResultStore {
	return &fakeResultStore{
		pivots:    pivots,
		persisted: make(map[string]int),
		failWith:  make(map[string]error),
		failCount: make(map[string]int),
	}
}

func (f *fakeResultStore) ListEligiblePivots(ctx context.Context) ([]matching.PivotRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.pivots, nil
}

func (f *fakeResultStore) ReplaceResults(ctx context.Context, ref matching.PivotRef, results []models.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pivotKey(ref)
	if err, ok := f.failWith[key]; ok {
		if f.failCount[key] != 0 {
			f.failCount[key]--
			return err
		}
	}
	f.persisted[key]++
	return nil
}

type memoryStateStore struct {
	mu    sync.Mutex
	saves int
	last  *models.BatchRunState
}

func (m *memoryStateStore) SaveBatchState(ctx context.Context, state models.BatchRunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.last = &state
	return nil
}

func (m *memoryStateStore) LoadBatchState(ctx context.Context) (*models.BatchRunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	states []models.BatchRunState
}

func (n *recordingNotifier) NotifyRunFinished(ctx context.Context, state models.BatchRunState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

// ==========================
// Fixtures
// ==========================

func testChild(id string) *models.Child {
	return &models.Child{
		ID:     id,
		Name:   "Child " + id,
		Status: models.ChildStatusNeedsPlacement,
		Age:    8,
	}
}

func testFamily(id string) *models.Family {
	return &models.Family{
		ID:                    id,
		Name:                  "Family " + id,
		LicenseStatus:         models.LicenseStatusActive,
		BackgroundCheckStatus: models.BackgroundCheckStatusClear,
		TrainingStatus:        models.TrainingStatusCompleted,
		AvailableCapacity:     1,
	}
}

func childRef(id string) matching.PivotRef {
	return matching.PivotRef{Kind: matching.PivotChild, ID: id}
}

func newTestEngine(t *testing.T, src matching.Source, store ResultStore, snapshot StateStore, notifier Notifier) *Engine {
	matcher := matching.NewMatcher(src, matching.NewAggregator(false), logger.NewTestLogger(t))
	cfg := config.MatchingConfig{ChunkSize: 2}
	return NewEngine(matcher, store, snapshot, notifier, cfg, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestEngine_Run_AllPivotsSucceed(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{
			"c1": testChild("c1"),
			"c2": testChild("c2"),
			"c3": testChild("c3"),
		},
		families: map[string]*models.Family{"f1": testFamily("f1")},
	}
	store := newFakeResultStore(childRef("c1"), childRef("c2"), childRef("c3"))
	snapshot := &memoryStateStore{}
	notifier := &recordingNotifier{}

	engine := newTestEngine(t, src, store, snapshot, notifier)
	final, err := engine.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, final.Status)
	assert.Equal(t, 3, final.Processed)
	assert.Equal(t, 0, final.Failed)

	for _, key := range []string{"child:c1", "child:c2", "child:c3"} {
		assert.Equal(t, 1, store.persisted[key], key)
	}

	// One snapshot per chunk plus the terminal one.
	assert.GreaterOrEqual(t, snapshot.saves, 2)
	require.Len(t, notifier.states, 1)
	assert.Equal(t, models.BatchStatusCompleted, notifier.states[0].Status)
}

func TestEngine_Run_PerPivotFailureIsolation(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{
			"c1": testChild("c1"),
			"c2": testChild("c2"),
		},
		families: map[string]*models.Family{"f1": testFamily("f1")},
	}
	store := newFakeResultStore(childRef("c1"), childRef("c2"))
	store.failWith["child:c1"] = errors.NewQueryExecutionFailedError("write", assert.AnError)
	store.failCount["child:c1"] = -1 // fail every attempt

	engine := newTestEngine(t, src, store, nil, nil)
	final, err := engine.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBatchPartialFailure, errors.CodeOf(err))
	assert.Equal(t, models.BatchStatusCompletedWithErrors, final.Status)
	assert.Equal(t, 2, final.Processed)
	assert.Equal(t, 1, final.Failed)
	assert.Equal(t, []string{"child:c1"}, final.FailedPivots)

	// The healthy pivot was still persisted.
	assert.Equal(t, 1, store.persisted["child:c2"])
}

func TestEngine_Run_TransientFailureRetriedOnce(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{"c1": testChild("c1")},
		families: map[string]*models.Family{"f1": testFamily("f1")},
	}
	store := newFakeResultStore(childRef("c1"))
	store.failWith["child:c1"] = errors.NewTransientPersistenceError(assert.AnError)
	store.failCount["child:c1"] = 1 // first attempt fails, retry succeeds

	engine := newTestEngine(t, src, store, nil, nil)
	final, err := engine.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, final.Status)
	assert.Equal(t, 1, store.persisted["child:c1"])
}

func TestEngine_Run_MissingPivotSkippedNotFailed(t *testing.T) {
	src := &fakeSource{
		children: map[string]*models.Child{"c1": testChild("c1")},
		families: map[string]*models.Family{"f1": testFamily("f1")},
	}
	// c2 was deleted between enumeration and processing.
	store := newFakeResultStore(childRef("c1"), childRef("c2"))

	engine := newTestEngine(t, src, store, nil, nil)
	final, err := engine.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Processed)
	assert.Equal(t, 0, final.Failed)
}

func TestEngine_Run_RejectsConcurrentRun(t *testing.T) {
	store := newFakeResultStore(childRef("c1"))
	engine := newTestEngine(t, &fakeSource{}, store, nil, nil)

	require.True(t, engine.State().TryStart(1))

	_, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestEngine_RestoreState(t *testing.T) {
	snapshot := &memoryStateStore{}
	snapshot.last = &models.BatchRunState{
		Status:    models.BatchStatusRunning,
		Processed: 7,
		Total:     20,
	}

	engine := newTestEngine(t, &fakeSource{}, newFakeResultStore(), snapshot, nil)
	engine.RestoreState(context.Background())

	snap := engine.State().Snapshot()
	assert.Equal(t, models.BatchStatusCompletedWithErrors, snap.Status)
	assert.False(t, snap.Running)
}
