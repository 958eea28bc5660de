package logger

import (
	"log/slog"
	"strings"
)

// RedactedAttr returns "[REDACTED]" for value in production, the value otherwise
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveParams = []string{
	"password",
	"secret",
	"token",
	"device_id",
	"canvas",
	"auth",
}

// SanitizeQueryString reports whether a raw query should be redacted from logs
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
