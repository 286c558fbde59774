// internal/workers/placement/record-changed/handler.go
package recordchanged

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/common/metrics"
	"fostermatch/internal/models"
	"fostermatch/pkg/registry"
)

const (
	TaskType = "placement.record-changed"
)

// ChangeService feeds record changes into the debounced scheduler.
type ChangeService interface {
	NotifyRecordChange(ctx context.Context, change models.RecordChange) bool
}

type Handler struct {
	config   *Config
	service  ChangeService
	manifest *registry.TaskRegistry
	logger   logger.Logger
	errorSvc *errors.ErrorHandler
}

func NewHandler(config *Config, svc ChangeService, log logger.Logger) *Handler {
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

// Execute classifies the change and schedules a recalculation when it is
// scoring-relevant. Exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input cannot be nil")
	}
	if input.Entity == "" || input.RecordID == "" {
		return nil, errors.NewValidationFailedError("entity and recordId are required")
	}

	change := models.RecordChange{
		Entity:        input.Entity,
		ChangeType:    input.ChangeType,
		RecordID:      input.RecordID,
		ChangedFields: input.ChangedFields,
		OldStatus:     input.OldStatus,
		NewStatus:     input.NewStatus,
	}

	scheduled := h.service.NotifyRecordChange(ctx, change)
	message := "recalculation scheduled"
	if !scheduled {
		message = "change is not scoring-relevant"
	}

	return &Output{
		Relevant:  scheduled,
		Scheduled: scheduled,
		Message:   message,
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
