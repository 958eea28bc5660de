package integration

import (
	"fmt"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	pkgauth "github.com/BradenHooton/deviceguard/pkg/auth"
)

// TestPassword is the access password every test server is configured with
const TestPassword = "correct-horse-battery"

// TestPasswordHash hashes TestPassword at the minimum bcrypt cost to keep tests fast
func TestPasswordHash() (string, error) {
	return pkgauth.HashPasswordWithCost(TestPassword, 4)
}

// TestDevice returns a distinct device id for suffix
func TestDevice(suffix string) string {
	return fingerprint.Compute(fingerprint.Signals{
		UserAgent: fmt.Sprintf("integration-test/%s", suffix),
		Language:  "en-us",
	})
}
