package updatematchstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

type mockService struct {
	lastStatus string
	lastNotes  string
	lastReason string
	result     *models.MatchResult
	err        error
}

func (m *mockService) UpdateMatchStatus(ctx context.Context, resultID, status, notes, reason string) (*models.MatchResult, error) {
	m.lastStatus = status
	m.lastNotes = notes
	m.lastReason = reason
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTestHandler(t *testing.T, svc StatusService) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, svc, logger.NewTestLogger(t))
}

func TestExecute_Success(t *testing.T) {
	svc := &mockService{
		result: &models.MatchResult{
			ID:          "r1",
			Status:      models.MatchStatusRecommended,
			CandidateID: "f1",
			Score:       92.5,
		},
	}
	h := newTestHandler(t, svc)

	output, err := h.Execute(context.Background(), &Input{
		ResultID: "r1",
		Status:   models.MatchStatusRecommended,
	})

	require.NoError(t, err)
	assert.Equal(t, "r1", output.ResultID)
	assert.Equal(t, models.MatchStatusRecommended, output.Status)
	assert.Equal(t, 92.5, output.Score)
	assert.NotEmpty(t, output.UpdatedAt)
}

func TestExecute_NotesAndReasonPassedSeparately(t *testing.T) {
	svc := &mockService{
		result: &models.MatchResult{ID: "r1", Status: models.MatchStatusNotSuitable},
	}
	h := newTestHandler(t, svc)

	_, err := h.Execute(context.Background(), &Input{
		ResultID: "r1",
		Status:   models.MatchStatusNotSuitable,
		Notes:    "see case file 1142",
		Reason:   "family relocating",
	})

	require.NoError(t, err)
	assert.Equal(t, "see case file 1142", svc.lastNotes)
	assert.Equal(t, "family relocating", svc.lastReason)
}

func TestExecute_ServiceErrorsPropagate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{
			name: "validation failure",
			err:  errors.NewValidationFailedError("a reason is required"),
			code: errors.ErrCodeValidationFailed,
		},
		{
			name: "missing result",
			err:  errors.NewResultNotFoundError("ghost"),
			code: errors.ErrCodeResultNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &mockService{err: tt.err})

			_, err := h.Execute(context.Background(), &Input{ResultID: "x", Status: "y"})
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestValidatePayload(t *testing.T) {
	h := newTestHandler(t, &mockService{})

	assert.NoError(t, h.validatePayload(`{"resultId":"r1","status":"Recommended"}`))
	assert.NoError(t, h.validatePayload(
		`{"resultId":"r1","status":"Not Suitable","reasonIfNotSuitable":"relocating"}`))
	assert.Error(t, h.validatePayload(`{"status":"Recommended"}`))
	assert.Error(t, h.validatePayload(`{"resultId":"r1","status":"Archived"}`))
	assert.Error(t, h.validatePayload(`not json`))
}

func TestExecute_NilInput(t *testing.T) {
	h := newTestHandler(t, &mockService{})

	_, err := h.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
