package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/models"
)

func TestRunState_TryStartGate(t *testing.T) {
	state := NewRunState()

	assert.True(t, state.TryStart(10))
	// A second start while running is rejected.
	assert.False(t, state.TryStart(5))

	state.Finish()
	// Terminal states allow a fresh run.
	assert.True(t, state.TryStart(5))
}

func TestRunState_FinishStatus(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		successes  int
		failures   int
		wantStatus string
	}{
		{"all succeeded", 3, 3, 0, models.BatchStatusCompleted},
		{"one failed", 3, 2, 1, models.BatchStatusCompletedWithErrors},
		{"aborted early", 5, 2, 0, models.BatchStatusCompletedWithErrors},
		{"empty run", 0, 0, 0, models.BatchStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewRunState()
			require.True(t, state.TryStart(tt.total))
			for i := 0; i < tt.successes; i++ {
				state.RecordSuccess()
			}
			for i := 0; i < tt.failures; i++ {
				state.RecordFailure("child:failed")
			}

			final := state.Finish()
			assert.Equal(t, tt.wantStatus, final.Status)
			assert.False(t, final.Running)
			assert.NotNil(t, final.FinishedAt)
			assert.NotNil(t, final.LastRun)
		})
	}
}

func TestRunState_SnapshotIsCopy(t *testing.T) {
	state := NewRunState()
	require.True(t, state.TryStart(2))
	state.RecordFailure("child:c1")

	snap := state.Snapshot()
	snap.FailedPivots[0] = "mutated"

	assert.Equal(t, []string{"child:c1"}, state.Snapshot().FailedPivots)
}

func TestRunState_RestoreDemotesStuckRunning(t *testing.T) {
	state := NewRunState()
	state.Restore(models.BatchRunState{
		Status:    models.BatchStatusRunning,
		Processed: 40,
		Total:     120,
	})

	snap := state.Snapshot()
	assert.Equal(t, models.BatchStatusCompletedWithErrors, snap.Status)
	assert.False(t, snap.Running)
	// The demoted state does not block a new run.
	assert.True(t, state.TryStart(10))
}
