package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/services"
	pkghttp "github.com/BradenHooton/deviceguard/pkg/http"
)

// GuardServiceInterface defines the lockout operations the HTTP layer needs
type GuardServiceInterface interface {
	ComputeFingerprint(signals fingerprint.Signals) string
	CheckStatus(ctx context.Context, deviceID string) models.DeviceStatus
	Authenticate(ctx context.Context, req services.AuthRequest) models.AuthResult
}

// GuardHandler handles device lockout HTTP requests
type GuardHandler struct {
	service  GuardServiceInterface
	source   fingerprint.Source
	ipConfig *pkghttp.IPConfig
	now      func() time.Time
}

// NewGuardHandler creates a new GuardHandler
func NewGuardHandler(service GuardServiceInterface, ipConfig *pkghttp.IPConfig) *GuardHandler {
	return &GuardHandler{
		service:  service,
		source:   fingerprint.HeaderSource{},
		ipConfig: ipConfig,
		now:      time.Now,
	}
}

// Request DTOs

// AuthenticateRequest represents the request body for authenticate.
// The device is taken from DeviceID, else from Signals, else from the request headers.
type AuthenticateRequest struct {
	DeviceID string               `json:"device_id" validate:"omitempty,len=32,hexadecimal"`
	Signals  *fingerprint.Signals `json:"signals" validate:"omitempty"`
	Username string               `json:"username" validate:"max=256"`
	Password string               `json:"password" validate:"required,max=72"`
}

// Response DTOs

// FingerprintResponse represents the response for fingerprint
type FingerprintResponse struct {
	DeviceID string `json:"device_id"`
}

// StatusResponse represents the response for status
type StatusResponse struct {
	models.DeviceStatus
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// AuthenticateResponse represents the response for authenticate
type AuthenticateResponse struct {
	models.AuthResult
	DeviceID string `json:"device_id"`
	Message  string `json:"message"`
}

// Fingerprint computes the device id for client-reported signals
// @Summary Compute device fingerprint
// @Accept json
// @Param request body fingerprint.Signals true "Device signals"
// @Produce json
// @Success 200 {object} FingerprintResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /guard/fingerprint [post]
func (h *GuardHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var signals fingerprint.Signals

	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(signals); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, FingerprintResponse{
		DeviceID: h.service.ComputeFingerprint(signals),
	})
}

// Status reports whether the requesting device is blocked
// @Summary Device lockout status
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /guard/status [get]
func (h *GuardHandler) Status(w http.ResponseWriter, r *http.Request) {
	deviceID := h.deviceFromRequest(r)
	status := h.service.CheckStatus(r.Context(), deviceID)

	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{
		DeviceStatus:     status,
		RemainingSeconds: ceilSeconds(status.Remaining(h.now())),
	})
}

// Authenticate checks the access password for the requesting device
// @Summary Authenticate a device
// @Accept json
// @Param request body AuthenticateRequest true "Credential"
// @Produce json
// @Success 200 {object} AuthenticateResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} AuthenticateResponse
// @Failure 429 {object} AuthenticateResponse
// @Router /guard/authenticate [post]
func (h *GuardHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthenticateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var deviceID string
	switch {
	case req.DeviceID != "":
		deviceID = strings.ToLower(req.DeviceID)
	case req.Signals != nil:
		deviceID = h.service.ComputeFingerprint(*req.Signals)
	default:
		deviceID = h.deviceFromRequest(r)
	}

	result := h.service.Authenticate(r.Context(), services.AuthRequest{
		DeviceID: deviceID,
		Credential: models.Credential{
			Username: strings.TrimSpace(req.Username),
			Password: req.Password,
		},
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})

	resp := AuthenticateResponse{
		AuthResult: result,
		DeviceID:   deviceID,
		Message:    h.authMessage(result),
	}

	switch err := result.Err(); {
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusOK, resp)
	case errors.Is(err, models.ErrDeviceBlocked):
		if result.BlockedUntil != nil {
			retry := ceilSeconds(result.BlockedUntil.Sub(h.now()))
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
		}
		pkghttp.WriteJSON(w, http.StatusTooManyRequests, resp)
	default:
		pkghttp.WriteJSON(w, http.StatusUnauthorized, resp)
	}
}

// deviceFromRequest returns the id resolved by fingerprint.Middleware, or
// computes it from the headers when the middleware is not installed
func (h *GuardHandler) deviceFromRequest(r *http.Request) string {
	if id := fingerprint.FromContext(r.Context()); id != "" {
		return id
	}
	return h.service.ComputeFingerprint(h.source.Signals(r))
}

func (h *GuardHandler) authMessage(result models.AuthResult) string {
	switch {
	case result.Granted:
		return "Access granted"
	case result.Blocked:
		msg := "Access denied. Too many failed attempts from this device."
		if result.BlockedUntil != nil {
			msg += " Try again in " + humanizeWait(result.BlockedUntil.Sub(h.now())) + "."
		}
		return msg
	case result.Warning:
		return fmt.Sprintf("Incorrect password. %d attempt(s) remaining before this device is blocked.", result.AttemptsRemaining)
	default:
		return "Incorrect password"
	}
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// humanizeWait renders a wait as whole hours, or whole minutes under an hour
func humanizeWait(d time.Duration) string {
	if d >= time.Hour {
		hours := int64(math.Ceil(d.Hours()))
		return plural(hours, "hour")
	}
	minutes := int64(math.Ceil(d.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return plural(minutes, "minute")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}
