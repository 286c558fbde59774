// internal/batch/notifier.go
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"fostermatch/internal/common/config"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

// Notifier receives the terminal snapshot of every run.
type Notifier interface {
	NotifyRunFinished(ctx context.Context, state models.BatchRunState)
}

// SESService and SNSService mirror the AWS client wrappers, for mocking.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// AWSNotifier emails a run summary to the caseworker team after every run
// and pages via SMS when the failure count crosses the configured
// threshold. Notification failures are logged, never propagated; a run's
// outcome does not depend on delivery.
type AWSNotifier struct {
	cfg    config.NotificationConfig
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func NewAWSNotifier(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{cfg: cfg, ses: sesClient, sns: snsClient, logger: log}
}

func (n *AWSNotifier) NotifyRunFinished(ctx context.Context, state models.BatchRunState) {
	if n.cfg.Email.Enabled && len(n.cfg.Email.Recipients) > 0 {
		if err := n.sendSummaryEmail(ctx, state); err != nil {
			n.logger.Error("batch summary email failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if n.cfg.SMS.Enabled && state.Failed > n.cfg.SMS.ErrorThreshold {
		n.sendFailurePage(ctx, state)
	}
}

func (n *AWSNotifier) sendSummaryEmail(ctx context.Context, state models.BatchRunState) error {
	subject := fmt.Sprintf("Match recalculation %s: %d/%d pivots", state.Status, state.Processed, state.Total)
	body := buildSummaryBody(state)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: n.cfg.Email.Recipients,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}

func (n *AWSNotifier) sendFailurePage(ctx context.Context, state models.BatchRunState) {
	message := fmt.Sprintf("Match recalculation finished with %d failed pivots (of %d)", state.Failed, state.Total)

	for _, phone := range n.cfg.SMS.PhoneNumbers {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(phone),
			Message:     aws.String(message),
		})
		if err != nil {
			n.logger.Error("batch failure SMS failed", map[string]interface{}{
				"error": err.Error(),
				"phone": phone,
			})
		}
	}
}

func buildSummaryBody(state models.BatchRunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", state.Status)
	fmt.Fprintf(&b, "Pivots processed: %d of %d\n", state.Processed, state.Total)
	fmt.Fprintf(&b, "Failures: %d\n", state.Failed)
	if state.StartedAt != nil && state.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration: %s\n", state.FinishedAt.Sub(*state.StartedAt).Round(time.Second))
	}
	if len(state.FailedPivots) > 0 {
		fmt.Fprintf(&b, "Failed pivots:\n")
		for _, key := range state.FailedPivots {
			fmt.Fprintf(&b, "  - %s\n", key)
		}
	}
	return b.String()
}
