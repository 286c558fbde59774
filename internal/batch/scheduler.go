// internal/batch/scheduler.go
package batch

import (
	"context"
	"sync"
	"time"

	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

// PoolInvalidator drops cached candidate pools when a source record
// changes.
type PoolInvalidator interface {
	InvalidateFamilyPool(ctx context.Context)
}

// scoringFields are the source-record fields whose change can move a match
// score. Changes touching none of them are ignored.
var scoringFields = map[string]bool{
	"status":                  true,
	"age":                     true,
	"gender":                  true,
	"jurisdiction":            true,
	"special_needs":           true,
	"special_needs_capable":   true,
	"special_needs_willing":   true,
	"license_status":          true,
	"background_check_status": true,
	"training_status":         true,
	"available_capacity":      true,
	"accepts_age_min":         true,
	"accepts_age_max":         true,
	"age_min":                 true,
	"age_max":                 true,
	"gender_preference":       true,
	"lat":                     true,
	"lon":                     true,
}

// Scheduler coalesces record-change notifications into full recalculation
// runs. The first relevant change arms the debounce timer; further changes
// while the timer is pending are no-ops, so the run fires a fixed interval
// after the first change. A change arriving while a run executes arms a
// fresh window rather than stacking a second run.
type Scheduler struct {
	engine      *Engine
	invalidator PoolInvalidator // optional
	debounce    time.Duration
	logger      logger.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewScheduler(engine *Engine, invalidator PoolInvalidator, debounce time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		engine:      engine,
		invalidator: invalidator,
		debounce:    debounce,
		logger:      log,
	}
}

// NotifyRecordChange feeds one source-record change into the scheduler.
// It returns true when the change was scoring-relevant and a run was
// scheduled (or an already-pending run absorbed it).
func (s *Scheduler) NotifyRecordChange(ctx context.Context, change models.RecordChange) bool {
	if !Relevant(change) {
		s.logger.Debug("record change ignored", map[string]interface{}{
			"entity":   change.Entity,
			"recordId": change.RecordID,
		})
		return false
	}

	if change.Entity == "family" && s.invalidator != nil {
		s.invalidator.InvalidateFamilyPool(ctx)
	}

	s.arm()
	s.logger.Info("recalculation scheduled", map[string]interface{}{
		"entity":     change.Entity,
		"changeType": change.ChangeType,
		"recordId":   change.RecordID,
		"debounce":   s.debounce.String(),
	})
	return true
}

// TriggerNow bypasses the debounce window and starts a run immediately,
// still honoring the single-run gate.
func (s *Scheduler) TriggerNow() {
	go s.run()
}

// Stop cancels any pending timer. An executing run finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// arm starts the debounce timer. A timer already pending is left alone so
// the run fires one debounce interval after the first request even under a
// sustained change stream.
func (s *Scheduler) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.run)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	s.timer = nil
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	_, err := s.engine.Run(context.Background())
	if err == ErrRunInProgress {
		// Re-arm so the change that fired this attempt still gets a run.
		s.arm()
		return
	}
	if err != nil {
		s.logger.Error("scheduled recalculation finished with errors", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Relevant reports whether a record change can affect match scores.
// Inserts and deletes always can; updates only when a scoring field moved
// or the change carries no field list at all.
func Relevant(change models.RecordChange) bool {
	switch change.Entity {
	case "child", "family", "preference":
	default:
		return false
	}

	if change.ChangeType != "update" {
		return true
	}
	if change.OldStatus != change.NewStatus {
		return true
	}
	if len(change.ChangedFields) == 0 {
		return true
	}
	for _, field := range change.ChangedFields {
		if scoringFields[field] {
			return true
		}
	}
	return false
}
