package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/models"
)

// AlertNotifier is told when a device moves into the blocked state
type AlertNotifier interface {
	DeviceBlocked(ctx context.Context, rec *models.DeviceAttempt) error
}

// LogAlertNotifier writes a security alert to the log
type LogAlertNotifier struct {
	logger *slog.Logger
}

// NewLogAlertNotifier creates a new LogAlertNotifier
func NewLogAlertNotifier(logger *slog.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{logger: logger}
}

// DeviceBlocked logs the alert
func (n *LogAlertNotifier) DeviceBlocked(ctx context.Context, rec *models.DeviceAttempt) error {
	n.logger.WarnContext(ctx, "security alert: device blocked after repeated failed attempts",
		slog.String("device_id", fingerprint.Short(rec.DeviceID)),
		slog.Int("attempts", rec.Attempts),
		slog.Time("blocked_until", *rec.BlockedUntil))
	return nil
}

// sesAPI is the part of the SES client the notifier uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertNotifier e-mails an operator through AWS SES
type SESAlertNotifier struct {
	client      sesAPI
	fromAddress string
	toAddress   string
	application string
	logger      *slog.Logger
}

// NewSESAlertNotifier creates a notifier using the default AWS credential chain
func NewSESAlertNotifier(ctx context.Context, region, fromAddress, toAddress, application string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESAlertNotifier(ses.NewFromConfig(cfg), fromAddress, toAddress, application, logger), nil
}

func newSESAlertNotifier(client sesAPI, fromAddress, toAddress, application string, logger *slog.Logger) *SESAlertNotifier {
	return &SESAlertNotifier{
		client:      client,
		fromAddress: fromAddress,
		toAddress:   toAddress,
		application: application,
		logger:      logger,
	}
}

// DeviceBlocked sends the alert e-mail
func (n *SESAlertNotifier) DeviceBlocked(ctx context.Context, rec *models.DeviceAttempt) error {
	subject := fmt.Sprintf("[%s] Device blocked after %d failed attempts", n.application, rec.Attempts)
	body := fmt.Sprintf(`Security alert from %s

A device was blocked after repeated failed password attempts.

Device:        %s
Attempts:      %d
Last attempt:  %s
Blocked until: %s

No action is required. The block lifts automatically.
`,
		n.application,
		rec.DeviceID,
		rec.Attempts,
		rec.LastAttempt.UTC().Format(time.RFC1123),
		rec.BlockedUntil.UTC().Format(time.RFC1123),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("device blocked alert sent",
		slog.String("device_id", fingerprint.Short(rec.DeviceID)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// MultiAlertNotifier fans an alert out to every notifier and joins their errors
type MultiAlertNotifier []AlertNotifier

// DeviceBlocked calls each notifier in order
func (m MultiAlertNotifier) DeviceBlocked(ctx context.Context, rec *models.DeviceAttempt) error {
	var errs []error
	for _, n := range m {
		if err := n.DeviceBlocked(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
