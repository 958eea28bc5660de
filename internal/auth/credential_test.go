package auth_test

import (
	"context"
	"testing"

	"github.com/BradenHooton/deviceguard/internal/auth"
	"github.com/BradenHooton/deviceguard/internal/models"
	pkgauth "github.com/BradenHooton/deviceguard/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := pkgauth.HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func TestCredentialVerifier_PasswordOnly(t *testing.T) {
	v := auth.NewCredentialVerifier("", testHash(t, "Tr4ding-Desk!"), nil)
	ctx := context.Background()

	ok, err := v.Verify(ctx, models.Credential{Password: "Tr4ding-Desk!"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, models.Credential{Password: "tr4ding-desk!"})
	require.NoError(t, err)
	assert.False(t, ok, "comparison is exact")

	ok, err = v.Verify(ctx, models.Credential{Username: "anyone", Password: "Tr4ding-Desk!"})
	require.NoError(t, err)
	assert.True(t, ok, "username ignored when not configured")
}

func TestCredentialVerifier_WithUsername(t *testing.T) {
	v := auth.NewCredentialVerifier("desk-operator", testHash(t, "Tr4ding-Desk!"), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		cred models.Credential
		want bool
	}{
		{"both match", models.Credential{Username: "desk-operator", Password: "Tr4ding-Desk!"}, true},
		{"wrong username", models.Credential{Username: "DESK-OPERATOR", Password: "Tr4ding-Desk!"}, false},
		{"wrong password", models.Credential{Username: "desk-operator", Password: "nope"}, false},
		{"empty", models.Credential{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(ctx, tt.cred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCredentialVerifier_MalformedHash(t *testing.T) {
	v := auth.NewCredentialVerifier("", "plaintext-secret", nil)

	ok, err := v.Verify(context.Background(), models.Credential{Password: "plaintext-secret"})

	assert.Error(t, err)
	assert.False(t, ok)
}
