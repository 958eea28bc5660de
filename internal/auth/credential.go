package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/BradenHooton/deviceguard/internal/models"
	pkgauth "github.com/BradenHooton/deviceguard/pkg/auth"
)

// CredentialVerifier checks a submitted credential against the configured
// access secret. Only a bcrypt hash of the password is held.
type CredentialVerifier struct {
	username     string
	passwordHash string
	delay        *TimingDelay
}

// NewCredentialVerifier creates a verifier. An empty username disables the username check.
func NewCredentialVerifier(username, passwordHash string, delay *TimingDelay) *CredentialVerifier {
	return &CredentialVerifier{
		username:     username,
		passwordHash: passwordHash,
		delay:        delay,
	}
}

// Verify reports whether cred matches. An error means the configured hash is
// unusable, not that the credential was wrong.
func (v *CredentialVerifier) Verify(ctx context.Context, cred models.Credential) (bool, error) {
	start := time.Now()

	usernameOK := true
	if v.username != "" {
		usernameOK = subtle.ConstantTimeCompare([]byte(cred.Username), []byte(v.username)) == 1
	}

	// bcrypt runs regardless of the username outcome so both failures cost the same
	err := pkgauth.ComparePassword(v.passwordHash, cred.Password)
	if err != nil && !pkgauth.IsMismatch(err) {
		return false, fmt.Errorf("access password hash is unusable: %w", err)
	}

	ok := usernameOK && err == nil
	v.delay.WaitFrom(ctx, start, ok)
	return ok, nil
}
