package recalculatematches

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
	"fostermatch/internal/service"
)

type mockService struct {
	lastRef matching.PivotRef
	calls   int
	resp    *service.TriggerResponse
	err     error
	status  models.BatchRunState
}

func (m *mockService) TriggerRecalculation(ctx context.Context, ref matching.PivotRef) (*service.TriggerResponse, error) {
	m.calls++
	m.lastRef = ref
	return m.resp, m.err
}

func (m *mockService) GetBatchStatus(ctx context.Context) models.BatchRunState {
	return m.status
}

func newTestHandler(t *testing.T, svc BatchService) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, svc, logger.NewTestLogger(t))
}

func TestExecute_FullRun(t *testing.T) {
	svc := &mockService{
		resp:   &service.TriggerResponse{Accepted: true, Scope: "full", Message: "full recalculation started"},
		status: models.BatchRunState{Status: models.BatchStatusRunning, Running: true},
	}
	h := newTestHandler(t, svc)

	output, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.True(t, output.Accepted)
	assert.Equal(t, "full", output.Scope)
	assert.True(t, output.Batch.Running)
	assert.True(t, svc.lastRef.IsZero())
}

func TestExecute_PivotScoped(t *testing.T) {
	svc := &mockService{
		resp: &service.TriggerResponse{Accepted: true, Scope: "pivot"},
	}
	h := newTestHandler(t, svc)

	output, err := h.Execute(context.Background(), &Input{PivotKind: "preference", PivotID: "p1"})

	require.NoError(t, err)
	assert.Equal(t, "pivot", output.Scope)
	assert.Equal(t, matching.PivotRef{Kind: matching.PivotPreference, ID: "p1"}, svc.lastRef)
}

func TestExecute_StatusOnlyDoesNotTrigger(t *testing.T) {
	svc := &mockService{
		status: models.BatchRunState{Status: models.BatchStatusCompleted, Processed: 50, Total: 50},
	}
	h := newTestHandler(t, svc)

	output, err := h.Execute(context.Background(), &Input{StatusOnly: true})

	require.NoError(t, err)
	assert.Equal(t, "status", output.Scope)
	assert.Equal(t, models.BatchStatusCompleted, output.Batch.Status)
	assert.Equal(t, 0, svc.calls)
}

func TestValidatePayload(t *testing.T) {
	h := newTestHandler(t, &mockService{})

	assert.NoError(t, h.validatePayload(`{}`))
	assert.NoError(t, h.validatePayload(`{"pivotKind":"preference","pivotId":"p1"}`))
	assert.NoError(t, h.validatePayload(`{"statusOnly":true}`))
	assert.Error(t, h.validatePayload(`{"pivotKind":"franchise","pivotId":"x"}`))
	assert.Error(t, h.validatePayload(`not json`))
}

func TestExecute_MismatchedPivotFields(t *testing.T) {
	h := newTestHandler(t, &mockService{})

	_, err := h.Execute(context.Background(), &Input{PivotKind: "child"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = h.Execute(context.Background(), &Input{PivotID: "c1"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
