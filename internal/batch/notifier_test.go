package batch

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/common/config"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

type mockSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, input)
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, input)
	return &sns.PublishOutput{}, m.err
}

func notifierConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "matching@agency.example"
	cfg.Email.Recipients = []string{"team@agency.example"}
	cfg.SMS.Enabled = true
	cfg.SMS.ErrorThreshold = 10
	cfg.SMS.PhoneNumbers = []string{"+15550100"}
	return cfg
}

func finishedState(failed int) models.BatchRunState {
	started := time.Now().UTC().Add(-2 * time.Minute)
	finished := time.Now().UTC()
	return models.BatchRunState{
		Status:     models.BatchStatusCompletedWithErrors,
		Processed:  100,
		Total:      100,
		Failed:     failed,
		StartedAt:  &started,
		FinishedAt: &finished,
	}
}

func TestAWSNotifier_EmailSummaryEveryRun(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewAWSNotifier(notifierConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	n.NotifyRunFinished(context.Background(), finishedState(2))

	require.Len(t, sesMock.inputs, 1)
	input := sesMock.inputs[0]
	assert.Equal(t, []string{"team@agency.example"}, input.Destination.ToAddresses)
	assert.Contains(t, *input.Message.Subject.Data, "100/100")
	assert.Contains(t, *input.Message.Body.Text.Data, "Failures: 2")

	// 2 failures is under the SMS threshold.
	assert.Empty(t, snsMock.inputs)
}

func TestAWSNotifier_SMSPageAboveThreshold(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewAWSNotifier(notifierConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	n.NotifyRunFinished(context.Background(), finishedState(25))

	require.Len(t, snsMock.inputs, 1)
	assert.Equal(t, "+15550100", *snsMock.inputs[0].PhoneNumber)
	assert.Contains(t, *snsMock.inputs[0].Message, "25 failed pivots")
}

func TestAWSNotifier_DisabledChannelsSendNothing(t *testing.T) {
	cfg := notifierConfig()
	cfg.Email.Enabled = false
	cfg.SMS.Enabled = false

	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewAWSNotifier(cfg, sesMock, snsMock, logger.NewTestLogger(t))

	n.NotifyRunFinished(context.Background(), finishedState(50))

	assert.Empty(t, sesMock.inputs)
	assert.Empty(t, snsMock.inputs)
}

func TestBuildSummaryBody_ListsFailedPivots(t *testing.T) {
	state := finishedState(2)
	state.FailedPivots = []string{"child:c1", "preference:p9"}

	body := buildSummaryBody(state)
	assert.Contains(t, body, "child:c1")
	assert.Contains(t, body, "preference:p9")
	assert.Contains(t, body, "Duration: 2m0s")
}
