// internal/workers/placement/recalculate-matches/handler.go
package recalculatematches

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/common/metrics"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
	"fostermatch/internal/service"
	"fostermatch/pkg/registry"
)

const (
	TaskType = "placement.recalculate-matches"
)

// BatchService is the slice of the placement service this worker uses.
type BatchService interface {
	TriggerRecalculation(ctx context.Context, ref matching.PivotRef) (*service.TriggerResponse, error)
	GetBatchStatus(ctx context.Context) models.BatchRunState
}

type Handler struct {
	config   *Config
	service  BatchService
	manifest *registry.TaskRegistry
	logger   logger.Logger
	errorSvc *errors.ErrorHandler
}

func NewHandler(config *Config, svc BatchService, log logger.Logger) *Handler {
	workerLog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		service:  svc,
		manifest: registry.Default(),
		logger:   workerLog,
		errorSvc: errors.NewErrorHandler(workerLog),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if err := h.validatePayload(job.Variables); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeValidationFailed)).Inc()
		h.errorSvc.HandleJobError(context.Background(), client, job,
			errors.NewValidationFailedError(err.Error()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeValidationFailed)).Inc()
		h.errorSvc.HandleJobError(context.Background(), client, job,
			errors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errorSvc.HandleJobError(ctx, client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.completeJob(client, job, output)
}

// validatePayload checks the raw job variables against the manifest schema
// for this task type.
func (h *Handler) validatePayload(raw string) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return h.manifest.ValidateInput(TaskType, payload)
}

// Execute triggers or inspects the recalculation. Exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input cannot be nil")
	}

	if input.StatusOnly {
		return &Output{
			Accepted: true,
			Scope:    "status",
			Batch:    h.service.GetBatchStatus(ctx),
		}, nil
	}

	// One of the fields set without the other is ambiguous.
	if (input.PivotKind == "") != (input.PivotID == "") {
		return nil, errors.NewValidationFailedError(
			"pivotKind and pivotId must be provided together")
	}

	ref := matching.PivotRef{Kind: matching.PivotKind(input.PivotKind), ID: input.PivotID}
	resp, err := h.service.TriggerRecalculation(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &Output{
		Accepted: resp.Accepted,
		Scope:    resp.Scope,
		Message:  resp.Message,
		Batch:    h.service.GetBatchStatus(ctx),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}
