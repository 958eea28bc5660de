package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Guard audit event types
const (
	EventAuthGranted            = "auth_granted"
	EventAuthFailed             = "auth_failed"
	EventAuthRejectedBlocked    = "auth_rejected_blocked"
	EventDeviceBlocked          = "device_blocked"
	EventPersistenceUnavailable = "persistence_unavailable"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	DeviceID      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Attempts      int
	Metadata      map[string]string
}

// AuditLogger writes audit events as structured log records
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

// NewAuditLogger creates a new audit logger. In production the client IP is redacted.
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

// Log records event and returns the id it was logged under
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) string {
	id := uuid.NewString()
	attrs := []slog.Attr{
		slog.String("audit_type", "guard"),
		slog.String("event_id", id),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", shortID(event.DeviceID)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, RedactedAttr("ip_address", event.IPAddress, al.env))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	if event.Attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", event.Attempts))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
	return id
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
