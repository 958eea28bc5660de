package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
)

func TestSecureLogger_LogsRequestWithDevice(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	chain := SecureLogger(logger)(fingerprint.Middleware(fingerprint.HeaderSource{})(RecordDevice(okHandler())))

	req := httptest.NewRequest("GET", "/guard/status", nil)
	req.Header.Set(fingerprint.HeaderDeviceID, "0123456789abcdef0123456789abcdef")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/guard/status", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, "01234567", entry["device_id"])
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	SecureLogger(logger)(okHandler()).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest("GET", "/guard/status?password=hunter2", nil))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "[REDACTED]")
}
