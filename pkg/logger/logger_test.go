package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_Log_Failure(t *testing.T) {
	var buf bytes.Buffer
	al := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "development")

	id := al.Log(context.Background(), pkglogger.AuditEvent{
		EventType:     pkglogger.EventAuthFailed,
		DeviceID:      "0123456789abcdef0123456789abcdef",
		IPAddress:     "203.0.113.9",
		FailureReason: "invalid_credential",
		Attempts:      2,
	})

	entry := decode(t, &buf)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, entry["event_id"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "auth_failed", entry["event_type"])
	assert.Equal(t, "01234567", entry["device_id"])
	assert.Equal(t, "203.0.113.9", entry["ip_address"])
	assert.Equal(t, float64(2), entry["attempts"])
}

func TestAuditLogger_Log_RedactsIPInProduction(t *testing.T) {
	var buf bytes.Buffer
	al := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "production")

	al.Log(context.Background(), pkglogger.AuditEvent{
		EventType: pkglogger.EventAuthGranted,
		IPAddress: "203.0.113.9",
		Success:   true,
	})

	entry := decode(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "[REDACTED]", entry["ip_address"])
	_, hasAttempts := entry["attempts"]
	assert.False(t, hasAttempts)
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, pkglogger.SanitizeQueryString("password=hunter2"))
	assert.True(t, pkglogger.SanitizeQueryString("Device_ID=abc"))
	assert.False(t, pkglogger.SanitizeQueryString("page=2"))
	assert.False(t, pkglogger.SanitizeQueryString(""))
}
