package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/deviceguard/internal/models"
)

func TestReadLine(t *testing.T) {
	line, err := readLine(strings.NewReader("s3cret-Password1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret-Password1", line)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(90 * time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		rec  *models.DeviceAttempt
		want string
	}{
		{"blocked", &models.DeviceAttempt{Attempts: 3, BlockedUntil: &future}, "blocked until"},
		{"expired", &models.DeviceAttempt{Attempts: 3, BlockedUntil: &past}, "clear (block expired)"},
		{"counting", &models.DeviceAttempt{Attempts: 2}, "clear, 2 failed attempt(s)"},
		{"clear", &models.DeviceAttempt{}, "clear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describe(tt.rec, now), tt.want)
		})
	}
}

func TestCommandsHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		assert.False(t, seen[c.Name()], c.Name())
		seen[c.Name()] = true
	}
}
