package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/deviceguard/internal/auth"
	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/deviceguard/internal/middleware"
	"github.com/BradenHooton/deviceguard/internal/repositories"
	"github.com/BradenHooton/deviceguard/internal/routes"
	"github.com/BradenHooton/deviceguard/internal/services"
	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
)

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Alerts *services.MockAlertNotifier
	Clock  *services.FakeClock
	Guard  *services.GuardService
}

// NewTestServer initializes a complete HTTP server over the postgres store with
// a real bcrypt verifier, a settable clock and captured alerts
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	hash, err := TestPasswordHash()
	if err != nil {
		return nil, err
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 0, RandomDelayMs: 0})
	alerts := &services.MockAlertNotifier{}
	clock := services.NewFakeClock(time.Now().UTC().Truncate(time.Microsecond))

	guard := services.NewGuardService(
		repositories.NewDeviceAttemptRepository(db),
		repositories.NewMemoryAttemptStore(),
		auth.NewCredentialVerifier("", hash, timingDelay),
		alerts,
		clock,
		services.GuardConfig{
			MaxAttempts:   3,
			BlockDuration: 24 * time.Hour,
			WarnAfter:     2,
			StoreTimeout:  2 * time.Second,
		},
		logger,
		pkglogger.NewAuditLogger(logger, "test"),
	)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router,
		handlers.NewGuardHandler(guard, nil),
		handlers.NewHealthHandler(db, "persistent", logger),
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
	)

	return &TestServer{
		Server: httptest.NewServer(router),
		DB:     db,
		Alerts: alerts,
		Clock:  clock,
		Guard:  guard,
	}, nil
}

// Close shuts the HTTP server down
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Authenticate posts password for deviceID and decodes the response
func (ts *TestServer) Authenticate(deviceID, password string) (int, handlers.AuthenticateResponse, error) {
	var out handlers.AuthenticateResponse

	body, err := json.Marshal(handlers.AuthenticateRequest{DeviceID: deviceID, Password: password})
	if err != nil {
		return 0, out, err
	}

	resp, err := http.Post(ts.Server.URL+"/guard/authenticate", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, out, err
	}
	defer resp.Body.Close()

	if err := decode(resp.Body, &out); err != nil {
		return resp.StatusCode, out, err
	}
	return resp.StatusCode, out, nil
}

// Status fetches the lockout status of deviceID
func (ts *TestServer) Status(deviceID string) (handlers.StatusResponse, error) {
	var out handlers.StatusResponse

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/guard/status", nil)
	if err != nil {
		return out, err
	}
	req.Header.Set(fingerprint.HeaderDeviceID, deviceID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("status: unexpected code %d", resp.StatusCode)
	}
	return out, decode(resp.Body, &out)
}

func decode(r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
