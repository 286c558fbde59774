// internal/workers/placement/run-matching-now/handler.go
package runmatchingnow

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
	"fostermatch/internal/service"
	"fostermatch/pkg/registry"
)

const (
	TaskType = "placement.run-matching-now"
)

// MatchService is the slice of the placement service this worker uses.
type MatchService interface {
	RunMatchingNow(ctx context.Context, ref matching.PivotRef, persist bool) (*service.MatchRunResponse, error)
}

type Handler struct {
	config   *Config
	service  MatchService
	manifest *registry.TaskRegistry
	logger   logger.Logger
	errorSvc *errors.ErrorHandler
}

func NewHandler(config *Config, svc MatchService, log logger.Logger) *Handler {
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
		h.failValidation(client, job, err.Error())
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failValidation(client, job, fmt.Sprintf("parse input: %v", err))
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

// Execute runs the matching operation. Exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input cannot be nil")
	}
	if input.PivotID == "" {
		return nil, errors.NewValidationFailedError("pivotId is required")
	}
	if !matching.ValidPivotKind(input.PivotKind) {
		return nil, errors.NewValidationFailedError(
			fmt.Sprintf("unknown pivot kind %q", input.PivotKind))
	}

	ref := matching.PivotRef{Kind: matching.PivotKind(input.PivotKind), ID: input.PivotID}
	resp, err := h.service.RunMatchingNow(ctx, ref, input.Persist)
	if err != nil {
		return nil, err
	}

	return &Output{
		Success:       resp.Success,
		Message:       resp.Message,
		Results:       resp.Results,
		ExcludedCount: len(resp.Excluded),
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

func (h *Handler) failValidation(client worker.JobClient, job entities.Job, message string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeValidationFailed)).Inc()
	h.errorSvc.HandleJobError(context.Background(), client, job,
		errors.NewValidationFailedError(message))
}
