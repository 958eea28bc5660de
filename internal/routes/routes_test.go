package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/handlers"
	"github.com/BradenHooton/deviceguard/internal/middleware"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/repositories"
	"github.com/BradenHooton/deviceguard/internal/routes"
	"github.com/BradenHooton/deviceguard/internal/services"
	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
)

const device = "fedcba9876543210fedcba9876543210"

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	verifier := &services.MockCredentialChecker{
		VerifyFunc: func(ctx context.Context, cred models.Credential) (bool, error) {
			return cred.Password == "correct", nil
		},
	}
	guard := services.NewGuardService(
		repositories.NewMemoryAttemptStore(),
		repositories.NewMemoryAttemptStore(),
		verifier,
		&services.MockAlertNotifier{},
		services.SystemClock{},
		services.GuardConfig{MaxAttempts: 3, BlockDuration: 5 * time.Minute, WarnAfter: 2, StoreTimeout: time.Second},
		logger,
		pkglogger.NewAuditLogger(logger, "test"),
	)

	router := chi.NewRouter()
	routes.RegisterRoutes(router,
		handlers.NewGuardHandler(guard, nil),
		handlers.NewHealthHandler(nil, "session", logger),
		middleware.RateLimitConfig{RequestsPerMinute: 100},
	)
	return router
}

func authenticate(t *testing.T, router http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"password": password})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/guard/authenticate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(fingerprint.HeaderDeviceID, device)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_LockoutFlow(t *testing.T) {
	router := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, authenticate(t, router, "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, authenticate(t, router, "wrong").Code)

	third := authenticate(t, router, "wrong")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)

	var resp handlers.AuthenticateResponse
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &resp))
	assert.Equal(t, models.KindInvalidCredential, resp.Reason)
	assert.True(t, resp.Blocked)
	assert.Equal(t, device, resp.DeviceID)

	blocked := authenticate(t, router, "correct")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &resp))
	assert.Equal(t, models.KindBlocked, resp.Reason)

	req := httptest.NewRequest("GET", "/guard/status", nil)
	req.Header.Set(fingerprint.HeaderDeviceID, device)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Blocked)
	assert.Equal(t, 3, status.Attempts)
	assert.Greater(t, status.RemainingSeconds, int64(0))
}

func TestRoutes_Health(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"memory"`)
}

func TestRoutes_FingerprintMatchesStatusDevice(t *testing.T) {
	router := newRouter(t)
	signals := fingerprint.Signals{UserAgent: "Mozilla/5.0 (X11; Linux x86_64)", Language: "en-us"}

	body, err := json.Marshal(signals)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/guard/fingerprint", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var fp handlers.FingerprintResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fp))

	req := httptest.NewRequest("GET", "/guard/status", nil)
	req.Header.Set("User-Agent", signals.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, fp.DeviceID, status.DeviceID)
}
