// internal/batch/engine.go
package batch

import (
	"context"
	stderrors "errors"
	"fmt"

	"fostermatch/internal/common/config"
	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/common/metrics"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
)

// ErrRunInProgress is returned when a full run is requested while one is
// already in flight.
var ErrRunInProgress = stderrors.New("batch run already in progress")

// ResultStore persists ranked result sets and enumerates the pivots a full
// run covers.
type ResultStore interface {
	ListEligiblePivots(ctx context.Context) ([]matching.PivotRef, error)
	ReplaceResults(ctx context.Context, ref matching.PivotRef, results []models.MatchResult) error
}

// StateStore snapshots run progress so a restart can tell a finished run
// from one that died mid-flight.
type StateStore interface {
	SaveBatchState(ctx context.Context, state models.BatchRunState) error
	LoadBatchState(ctx context.Context) (*models.BatchRunState, error)
}

// Engine walks every eligible pivot in chunks, recalculates its match set,
// and persists each set atomically. One pivot's failure never aborts the
// run; the watchdog deadline does, leaving a CompletedWithErrors terminal
// state instead of a stuck Running.
type Engine struct {
	matcher  *matching.Matcher
	store    ResultStore
	snapshot StateStore // optional
	notifier Notifier   // optional
	state    *RunState
	cfg      config.MatchingConfig
	logger   logger.Logger
}

func NewEngine(matcher *matching.Matcher, store ResultStore, snapshot StateStore, notifier Notifier, cfg config.MatchingConfig, log logger.Logger) *Engine {
	return &Engine{
		matcher:  matcher,
		store:    store,
		snapshot: snapshot,
		notifier: notifier,
		state:    NewRunState(),
		cfg:      cfg,
		logger:   log,
	}
}

// State returns the engine's run state for status queries.
func (e *Engine) State() *RunState {
	return e.state
}

// RestoreState loads the last persisted snapshot, if any.
func (e *Engine) RestoreState(ctx context.Context) {
	if e.snapshot == nil {
		return
	}
	snap, err := e.snapshot.LoadBatchState(ctx)
	if err != nil {
		e.logger.Warn("batch state snapshot load failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if snap == nil {
		return
	}
	if snap.Status == models.BatchStatusRunning {
		e.logger.Warn("previous batch run died mid-flight", map[string]interface{}{
			"processed": snap.Processed,
			"total":     snap.Total,
		})
	}
	e.state.Restore(*snap)
}

// Run executes one full recalculation pass. It returns ErrRunInProgress
// when another run holds the gate, and the terminal snapshot otherwise.
func (e *Engine) Run(ctx context.Context) (models.BatchRunState, error) {
	pivots, err := e.store.ListEligiblePivots(ctx)
	if err != nil {
		return e.state.Snapshot(), err
	}

	if !e.state.TryStart(len(pivots)) {
		return e.state.Snapshot(), ErrRunInProgress
	}

	e.logger.Info("batch recalculation started", map[string]interface{}{
		"pivots":    len(pivots),
		"chunkSize": e.cfg.ChunkSize,
	})

	runCtx := ctx
	if watchdog := e.cfg.Watchdog(); watchdog > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, watchdog)
		defer cancel()
	}

	e.processAll(runCtx, pivots)

	final := e.state.Finish()
	e.persistSnapshot(ctx, final)
	metrics.BatchRunsTotal.WithLabelValues(final.Status).Inc()

	e.logger.Info("batch recalculation finished", map[string]interface{}{
		"status":    final.Status,
		"processed": final.Processed,
		"failed":    final.Failed,
	})

	if e.notifier != nil {
		e.notifier.NotifyRunFinished(ctx, final)
	}

	if final.Failed > 0 {
		return final, errors.NewBatchPartialFailureError(final.Failed, final.FailedPivots)
	}
	return final, nil
}

func (e *Engine) processAll(ctx context.Context, pivots []matching.PivotRef) {
	chunkSize := e.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(pivots)
	}

	for start := 0; start < len(pivots); start += chunkSize {
		end := start + chunkSize
		if end > len(pivots) {
			end = len(pivots)
		}

		for _, ref := range pivots[start:end] {
			if ctx.Err() != nil {
				e.logger.Error("batch run aborted by watchdog", map[string]interface{}{
					"remaining": len(pivots) - start,
				})
				return
			}
			e.recalcOne(ctx, ref)
		}

		e.persistSnapshot(ctx, e.state.Snapshot())
	}
}

func (e *Engine) recalcOne(ctx context.Context, ref matching.PivotRef) {
	err := e.RecalculatePivot(ctx, ref)
	if err == nil {
		e.state.RecordSuccess()
		metrics.BatchPivotsProcessed.Inc()
		return
	}

	// A pivot that went missing or ineligible since enumeration simply
	// has nothing to recalculate.
	if errors.IsNotFound(err) || errors.IsIneligible(err) {
		e.state.RecordSuccess()
		metrics.BatchPivotsProcessed.Inc()
		e.logger.Debug("pivot skipped", map[string]interface{}{
			"pivotKind": ref.Kind,
			"pivotId":   ref.ID,
			"reason":    err.Error(),
		})
		return
	}

	key := pivotKey(ref)
	e.state.RecordFailure(key)
	metrics.BatchPivotsProcessed.Inc()
	metrics.BatchPivotFailures.Inc()
	e.logger.Error("pivot recalculation failed", map[string]interface{}{
		"pivot": key,
		"error": err.Error(),
	})
}

// RecalculatePivot recomputes and persists one pivot's result set. A
// transient persistence failure is retried once before counting as failed.
func (e *Engine) RecalculatePivot(ctx context.Context, ref matching.PivotRef) error {
	ranked, err := e.matcher.Match(ctx, ref)
	if err != nil {
		return err
	}

	err = e.store.ReplaceResults(ctx, ref, ranked)
	if err != nil && errors.IsRetryable(err) {
		e.logger.Warn("transient persistence failure, retrying", map[string]interface{}{
			"pivot": pivotKey(ref),
			"error": err.Error(),
		})
		err = e.store.ReplaceResults(ctx, ref, ranked)
	}
	return err
}

func (e *Engine) persistSnapshot(ctx context.Context, snap models.BatchRunState) {
	if e.snapshot == nil {
		return
	}
	if err := e.snapshot.SaveBatchState(ctx, snap); err != nil {
		e.logger.Warn("batch state snapshot save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func pivotKey(ref matching.PivotRef) string {
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}
