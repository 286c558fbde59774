// internal/batch/state.go
package batch

import (
	"sync"
	"time"

	"fostermatch/internal/models"
)

// RunState tracks the lifecycle of the recalculation run. The engine is its
// only writer; status reads come through Snapshot. TryStart is the
// compare-and-set gate that guarantees at most one run at a time.
type RunState struct {
	mu sync.Mutex

	status       string
	processed    int
	total        int
	failed       int
	failedPivots []string
	startedAt    *time.Time
	finishedAt   *time.Time
	lastRun      *time.Time
}

func NewRunState() *RunState {
	return &RunState{status: models.BatchStatusIdle}
}

// Restore seeds the state from a persisted snapshot, typically on startup.
// A snapshot stuck in Running means the previous process died mid-run; it
// is demoted to CompletedWithErrors so a new run can start.
func (s *RunState) Restore(snap models.BatchRunState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = snap.Status
	if s.status == models.BatchStatusRunning {
		s.status = models.BatchStatusCompletedWithErrors
	}
	s.processed = snap.Processed
	s.total = snap.Total
	s.failed = snap.Failed
	s.failedPivots = snap.FailedPivots
	s.startedAt = snap.StartedAt
	s.finishedAt = snap.FinishedAt
	s.lastRun = snap.LastRun
}

// TryStart transitions Idle or a terminal status to Running and resets the
// counters. It returns false, without side effects, when a run is already
// in flight.
func (s *RunState) TryStart(total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == models.BatchStatusRunning {
		return false
	}

	now := time.Now().UTC()
	s.status = models.BatchStatusRunning
	s.processed = 0
	s.total = total
	s.failed = 0
	s.failedPivots = nil
	s.startedAt = &now
	s.finishedAt = nil
	return true
}

// RecordSuccess counts one successfully recalculated pivot.
func (s *RunState) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
}

// RecordFailure counts one failed pivot. The run keeps going; the pivot key
// is reported in the terminal summary.
func (s *RunState) RecordFailure(pivotKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.failed++
	s.failedPivots = append(s.failedPivots, pivotKey)
}

// Finish moves the run to its terminal status and returns the final
// snapshot. Any failed pivot, or an abort before all pivots were
// processed, makes the run CompletedWithErrors.
func (s *RunState) Finish() models.BatchRunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.finishedAt = &now
	s.lastRun = &now
	if s.failed > 0 || s.processed < s.total {
		s.status = models.BatchStatusCompletedWithErrors
	} else {
		s.status = models.BatchStatusCompleted
	}
	return s.snapshotLocked()
}

// Snapshot returns a copy of the current state.
func (s *RunState) Snapshot() models.BatchRunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Running reports whether a run is currently in flight.
func (s *RunState) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.BatchStatusRunning
}

func (s *RunState) snapshotLocked() models.BatchRunState {
	snap := models.BatchRunState{
		Status:     s.status,
		Running:    s.status == models.BatchStatusRunning,
		Processed:  s.processed,
		Total:      s.total,
		Failed:     s.failed,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		LastRun:    s.lastRun,
	}
	if len(s.failedPivots) > 0 {
		snap.FailedPivots = append([]string(nil), s.failedPivots...)
	}
	return snap
}
