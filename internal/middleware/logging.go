package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// The device id is resolved further down the chain, so read it back after the handler runs
			var deviceID string
			next.ServeHTTP(wrapped, r.WithContext(withDeviceSlot(r.Context(), &deviceID)))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if deviceID != "" {
				attrs = append(attrs, slog.String("device_id", fingerprint.Short(deviceID)))
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}

type deviceSlotKey struct{}

func withDeviceSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, deviceSlotKey{}, slot)
}

// RecordDevice copies the resolved device id into the request log entry. It
// must be mounted after fingerprint.Middleware.
func RecordDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(deviceSlotKey{}).(*string); ok {
			*slot = fingerprint.FromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
