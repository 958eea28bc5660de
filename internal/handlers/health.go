package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/deviceguard/pkg/http"
)

// HealthChecker is implemented by the attempt store backends
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the response for health
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Policy string `json:"policy"`
}

// HealthHandler reports whether the attempt store is reachable
type HealthHandler struct {
	checker HealthChecker
	policy  string
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil checker means the
// attempts live in process memory and the store is always up.
func NewHealthHandler(checker HealthChecker, policy string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, policy: policy, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "memory", Policy: h.policy})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		h.logger.Error("health check failed", slog.Any("error", err))
		// The guard fails open while the store is down, so the service is degraded rather than unavailable
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Store: "down", Policy: h.policy})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "up", Policy: h.policy})
}
