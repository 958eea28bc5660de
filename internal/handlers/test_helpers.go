package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/services"
	pkghttp "github.com/BradenHooton/deviceguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithDeviceContext adds a resolved device id to the request context
func WithDeviceContext(req *http.Request, deviceID string) *http.Request {
	return req.WithContext(fingerprint.WithDeviceID(req.Context(), deviceID))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockGuardService implements GuardServiceInterface for testing
type MockGuardService struct {
	ComputeFingerprintFunc func(signals fingerprint.Signals) string
	CheckStatusFunc        func(ctx context.Context, deviceID string) models.DeviceStatus
	AuthenticateFunc       func(ctx context.Context, req services.AuthRequest) models.AuthResult
}

func (m *MockGuardService) ComputeFingerprint(signals fingerprint.Signals) string {
	if m.ComputeFingerprintFunc == nil {
		return fingerprint.Compute(signals)
	}
	return m.ComputeFingerprintFunc(signals)
}

func (m *MockGuardService) CheckStatus(ctx context.Context, deviceID string) models.DeviceStatus {
	if m.CheckStatusFunc == nil {
		return models.DeviceStatus{DeviceID: deviceID, MaxAttempts: 3}
	}
	return m.CheckStatusFunc(ctx, deviceID)
}

func (m *MockGuardService) Authenticate(ctx context.Context, req services.AuthRequest) models.AuthResult {
	if m.AuthenticateFunc == nil {
		return models.AuthResult{Reason: models.KindInvalidCredential, Attempts: 1, AttemptsRemaining: 2}
	}
	return m.AuthenticateFunc(ctx, req)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
