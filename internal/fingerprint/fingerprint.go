// Package fingerprint derives an opaque device identifier from environment
// signals reported by a browser.
//
// The identifier is a coarse heuristic key, not a credential: the signals are
// trivially spoofable and change across browser updates. Callers that only
// need a lookup key should depend on the DeviceID string, never on how the
// signals were gathered.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Header names a browser client uses to report signals that are not part of
// a regular request.
const (
	HeaderDeviceID         = "X-Device-ID"
	HeaderPlatform         = "Sec-CH-UA-Platform"
	HeaderScreenResolution = "X-Screen-Resolution"
	HeaderTimezone         = "X-Timezone"
	HeaderCanvasSignature  = "X-Canvas-Signature"
)

// Signals are the environment values a fingerprint is computed from
type Signals struct {
	UserAgent        string `json:"user_agent" validate:"required,max=1024"`
	Language         string `json:"language" validate:"max=64"`
	Platform         string `json:"platform" validate:"max=128"`
	ScreenResolution string `json:"screen_resolution" validate:"max=32"`
	Timezone         string `json:"timezone" validate:"max=64"`
	CanvasSignature  string `json:"canvas_signature" validate:"max=4096"`
}

// Normalize trims every signal and lower-cases the language tag
func (s Signals) Normalize() Signals {
	return Signals{
		UserAgent:        strings.TrimSpace(s.UserAgent),
		Language:         strings.ToLower(strings.TrimSpace(s.Language)),
		Platform:         strings.Trim(strings.TrimSpace(s.Platform), `"`),
		ScreenResolution: strings.TrimSpace(s.ScreenResolution),
		Timezone:         strings.TrimSpace(s.Timezone),
		CanvasSignature:  strings.TrimSpace(s.CanvasSignature),
	}
}

// Compute encodes the signals into a 32-character hex identifier.
// Equal signals always produce the same identifier.
func Compute(s Signals) string {
	s = s.Normalize()
	canonical := strings.Join([]string{
		"ua=" + s.UserAgent,
		"lang=" + s.Language,
		"platform=" + s.Platform,
		"screen=" + s.ScreenResolution,
		"tz=" + s.Timezone,
		"canvas=" + s.CanvasSignature,
	}, "\x1f")

	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:16])
}

// Source gathers signals for the device behind a request
type Source interface {
	Signals(r *http.Request) Signals
}

// HeaderSource reads signals from standard and client-supplied headers
type HeaderSource struct{}

// Signals implements Source
func (HeaderSource) Signals(r *http.Request) Signals {
	return Signals{
		UserAgent:        r.Header.Get("User-Agent"),
		Language:         primaryLanguage(r.Header.Get("Accept-Language")),
		Platform:         r.Header.Get(HeaderPlatform),
		ScreenResolution: r.Header.Get(HeaderScreenResolution),
		Timezone:         r.Header.Get(HeaderTimezone),
		CanvasSignature:  r.Header.Get(HeaderCanvasSignature),
	}
}

// primaryLanguage returns the first tag of an Accept-Language header, without its weight
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(tag)
}

// IsValid reports whether id looks like an identifier produced by Compute
func IsValid(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

type contextKey struct{}

// WithDeviceID stores a device id in ctx
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the device id stored by Middleware, or ""
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Middleware resolves the device id for every request: an explicit, well-formed
// X-Device-ID header wins, otherwise the id is computed from src.
func Middleware(src Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderDeviceID)))
			if !IsValid(id) {
				id = Compute(src.Signals(r))
			}
			next.ServeHTTP(w, r.WithContext(WithDeviceID(r.Context(), id)))
		})
	}
}

// Short truncates an id for log output
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
