// internal/service/service.go

// Package service exposes the placement-matching operations consumed by
// the workflow workers. User-facing operations return structured responses
// instead of raw errors so the caseworker flow always gets an explanation
// it can surface.
package service

import (
	"context"
	"fmt"

	"fostermatch/internal/batch"
	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
)

// ResultReader reads persisted match results.
type ResultReader interface {
	GetCurrentResults(ctx context.Context, ref matching.PivotRef) ([]models.MatchResult, error)
	GetResult(ctx context.Context, id string) (*models.MatchResult, error)
	UpdateResultStatus(ctx context.Context, id, status, notes, reason string) error
}

// MatchRunResponse is the outcome of an on-demand matching run. Expected
// domain failures (missing or ineligible pivot) come back with
// Success=false and a message rather than an error.
type MatchRunResponse struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message,omitempty"`
	Results  []models.MatchResult `json:"results"`
	Excluded []models.MatchResult `json:"excluded,omitempty"`
}

// TriggerResponse acknowledges a recalculation request.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Scope    string `json:"scope"` // "pivot" | "full"
	Message  string `json:"message,omitempty"`
}

// Service wires the matcher, the batch engine, and the result store behind
// the operations the workers call.
type Service struct {
	matcher   *matching.Matcher
	engine    *batch.Engine
	scheduler *batch.Scheduler
	results   ResultReader
	logger    logger.Logger
}

func New(matcher *matching.Matcher, engine *batch.Engine, scheduler *batch.Scheduler, results ResultReader, log logger.Logger) *Service {
	return &Service{
		matcher:   matcher,
		engine:    engine,
		scheduler: scheduler,
		results:   results,
		logger:    log,
	}
}

// RunMatchingNow recalculates one pivot on demand. With persist set the
// ranked set atomically replaces the pivot's stored results; otherwise the
// scores are returned without touching storage. Infrastructure failures
// still return an error; domain outcomes never do.
func (s *Service) RunMatchingNow(ctx context.Context, ref matching.PivotRef, persist bool) (*MatchRunResponse, error) {
	if !matching.ValidPivotKind(string(ref.Kind)) || ref.ID == "" {
		return &MatchRunResponse{
			Success: false,
			Message: fmt.Sprintf("invalid pivot reference %q/%q", ref.Kind, ref.ID),
			Results: []models.MatchResult{},
		}, nil
	}

	ranked, excluded, err := s.matcher.MatchDetailed(ctx, ref)
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return &MatchRunResponse{
				Success: false,
				Message: fmt.Sprintf("%s %q not found", ref.Kind, ref.ID),
				Results: []models.MatchResult{},
			}, nil
		case errors.IsIneligible(err):
			return &MatchRunResponse{
				Success: false,
				Message: err.Error(),
				Results: []models.MatchResult{},
			}, nil
		default:
			return nil, err
		}
	}

	if persist {
		if err := s.engine.RecalculatePivot(ctx, ref); err != nil {
			return nil, err
		}
	}

	message := fmt.Sprintf("%d candidates ranked", len(ranked))
	if len(ranked) == 0 {
		message = "no eligible candidates"
	}

	return &MatchRunResponse{
		Success:  true,
		Message:  message,
		Results:  ranked,
		Excluded: excluded,
	}, nil
}

// GetBatchStatus returns a snapshot of the in-flight or last-completed
// recalculation run.
func (s *Service) GetBatchStatus(ctx context.Context) models.BatchRunState {
	return s.engine.State().Snapshot()
}

// GetCurrentResults returns the pivot's stored ranked result set.
func (s *Service) GetCurrentResults(ctx context.Context, ref matching.PivotRef) ([]models.MatchResult, error) {
	return s.results.GetCurrentResults(ctx, ref)
}

// TriggerRecalculation requests a recalculation. A pivot-scoped request is
// executed synchronously; a full request starts the batch run in the
// background and is acknowledged immediately. Triggering while a run is
// already in flight is a no-op acknowledgment.
func (s *Service) TriggerRecalculation(ctx context.Context, ref matching.PivotRef) (*TriggerResponse, error) {
	if !ref.IsZero() {
		if !matching.ValidPivotKind(string(ref.Kind)) {
			return nil, errors.NewValidationFailedError(
				fmt.Sprintf("unknown pivot kind %q", ref.Kind))
		}
		if err := s.engine.RecalculatePivot(ctx, ref); err != nil {
			return nil, err
		}
		return &TriggerResponse{
			Accepted: true,
			Scope:    "pivot",
			Message:  fmt.Sprintf("recalculated %s %q", ref.Kind, ref.ID),
		}, nil
	}

	if s.engine.State().Running() {
		return &TriggerResponse{
			Accepted: true,
			Scope:    "full",
			Message:  "recalculation already in progress",
		}, nil
	}

	s.scheduler.TriggerNow()
	return &TriggerResponse{
		Accepted: true,
		Scope:    "full",
		Message:  "full recalculation started",
	}, nil
}

// NotifyRecordChange feeds a source-record change into the debounced
// scheduler. It returns whether the change was scoring-relevant.
func (s *Service) NotifyRecordChange(ctx context.Context, change models.RecordChange) bool {
	return s.scheduler.NotifyRecordChange(ctx, change)
}

// UpdateMatchStatus moves a stored result through the caseworker review
// workflow. Moving to Not Suitable requires a reason, carried separately
// from free-form notes; a validation failure leaves the result untouched.
func (s *Service) UpdateMatchStatus(ctx context.Context, resultID, status, notes, reason string) (*models.MatchResult, error) {
	if resultID == "" {
		return nil, errors.NewValidationFailedError("result id is required")
	}
	if !models.ValidMatchStatus(status) {
		return nil, errors.NewValidationFailedError(
			fmt.Sprintf("unknown match status %q", status))
	}
	if status == models.MatchStatusNotSuitable && reason == "" {
		return nil, errors.NewValidationFailedError(
			`a reason is required when marking a match "Not Suitable"`)
	}

	if err := s.results.UpdateResultStatus(ctx, resultID, status, notes, reason); err != nil {
		return nil, err
	}

	updated, err := s.results.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, errors.NewResultNotFoundError(resultID)
	}

	s.logger.Info("match status updated", map[string]interface{}{
		"resultId": resultID,
		"status":   status,
	})
	return updated, nil
}
