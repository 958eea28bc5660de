package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/deviceguard/internal/models"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func blockedRecord() *models.DeviceAttempt {
	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	until := last.Add(24 * time.Hour)
	return &models.DeviceAttempt{
		DeviceID:     "0123456789abcdef0123456789abcdef",
		Attempts:     3,
		BlockedUntil: &until,
		LastAttempt:  last,
	}
}

func TestSESAlertNotifier_DeviceBlocked(t *testing.T) {
	client := &fakeSES{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	n := newSESAlertNotifier(client, "guard@example.com", "ops@example.com", "dashboard", logger)

	err := n.DeviceBlocked(context.Background(), blockedRecord())
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "guard@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ops@example.com"}, client.input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(client.input.Message.Subject.Data), "dashboard")
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "0123456789abcdef0123456789abcdef")
}

func TestSESAlertNotifier_SendError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	n := newSESAlertNotifier(client, "guard@example.com", "ops@example.com", "dashboard", logger)

	err := n.DeviceBlocked(context.Background(), blockedRecord())
	assert.ErrorContains(t, err, "throttled")
}

func TestMultiAlertNotifier_CallsEveryNotifier(t *testing.T) {
	first := &MockAlertNotifier{Err: errors.New("first failed")}
	second := &MockAlertNotifier{}

	err := MultiAlertNotifier{first, second}.DeviceBlocked(context.Background(), blockedRecord())

	assert.ErrorContains(t, err, "first failed")
	assert.Equal(t, 1, first.Count())
	assert.Equal(t, 1, second.Count())
}

func TestLogAlertNotifier_NeverFails(t *testing.T) {
	n := NewLogAlertNotifier(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	assert.NoError(t, n.DeviceBlocked(context.Background(), blockedRecord()))
}
