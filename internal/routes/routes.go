package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/handlers"
	"github.com/BradenHooton/deviceguard/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	guardHandler *handlers.GuardHandler,
	healthHandler *handlers.HealthHandler,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Get("/health", healthHandler.Health)

	router.Route("/guard", func(r chi.Router) {
		// Every guard route works on the device behind the request
		r.Use(fingerprint.Middleware(fingerprint.HeaderSource{}))
		r.Use(middleware.RecordDevice)

		r.Post("/fingerprint", guardHandler.Fingerprint)
		r.Get("/status", guardHandler.Status)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/authenticate", guardHandler.Authenticate)
	})
}
