package auth_test

import (
	"testing"

	"github.com/BradenHooton/deviceguard/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := auth.HashPasswordWithCost("Correct-Horse-9", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "Correct-Horse-9", hash)

	assert.NoError(t, auth.ComparePassword(hash, "Correct-Horse-9"))

	err = auth.ComparePassword(hash, "wrong")
	assert.Error(t, err)
	assert.True(t, auth.IsMismatch(err))
}

func TestComparePassword_MalformedHash(t *testing.T) {
	err := auth.ComparePassword("not-a-hash", "anything")

	assert.Error(t, err)
	assert.False(t, auth.IsMismatch(err))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"strong", "Tr4ding-Desk!", false},
		{"too short", "Ab1!", true},
		{"no digit", "Trading-Desk!", true},
		{"no special", "Tr4dingDesk", true},
		{"single case", "tr4ding-desk!", true},
		{"common", "Password123!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.CheckStrength(tt.password)
			if tt.wantErr {
				var se *auth.PasswordStrengthError
				assert.ErrorAs(t, err, &se)
				assert.NotEmpty(t, se.Problems)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
