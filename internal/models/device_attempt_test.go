package models_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDeviceAttempt_BlockWindow(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	until := now.Add(5 * time.Minute)
	rec := &models.DeviceAttempt{DeviceID: "dev-A", Attempts: 3, BlockedUntil: &until}

	assert.True(t, rec.IsBlocked(now))
	assert.False(t, rec.BlockExpired(now))
	assert.Equal(t, 3, rec.EffectiveAttempts(now))

	assert.False(t, rec.IsBlocked(until))
	assert.True(t, rec.BlockExpired(until))
	assert.Equal(t, 0, rec.EffectiveAttempts(until))
}

func TestDeviceAttempt_NoBlock(t *testing.T) {
	now := time.Now()
	rec := &models.DeviceAttempt{DeviceID: "dev-B", Attempts: 2}

	assert.False(t, rec.IsBlocked(now))
	assert.False(t, rec.BlockExpired(now))
	assert.Equal(t, 2, rec.EffectiveAttempts(now))
}

func TestDeviceAttempt_CloneIsIndependent(t *testing.T) {
	until := time.Now().Add(time.Hour)
	rec := &models.DeviceAttempt{DeviceID: "dev-C", Attempts: 1, BlockedUntil: &until}

	c := rec.Clone()
	c.Attempts = 9
	*c.BlockedUntil = until.Add(time.Hour)

	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, until, *rec.BlockedUntil)
	assert.Nil(t, (*models.DeviceAttempt)(nil).Clone())
}

func TestDeviceStatus_Remaining(t *testing.T) {
	now := time.Now()
	until := now.Add(90 * time.Second)

	assert.Equal(t, 90*time.Second, models.DeviceStatus{Blocked: true, BlockedUntil: &until}.Remaining(now))
	assert.Zero(t, models.DeviceStatus{Blocked: false, BlockedUntil: &until}.Remaining(now))
	assert.Zero(t, models.DeviceStatus{Blocked: true, BlockedUntil: &until}.Remaining(until.Add(time.Second)))
}

func TestErrorKind_Err(t *testing.T) {
	assert.ErrorIs(t, models.KindBlocked.Err(), models.ErrDeviceBlocked)
	assert.ErrorIs(t, models.KindInvalidCredential.Err(), models.ErrInvalidCredential)
	assert.ErrorIs(t, models.KindPersistenceUnavailable.Err(), models.ErrPersistenceUnavailable)
	assert.NoError(t, models.ErrorKind("").Err())
}

func TestAuthResult_Err(t *testing.T) {
	tests := []struct {
		name   string
		result models.AuthResult
		want   error
	}{
		{"granted", models.AuthResult{Granted: true}, nil},
		{"invalid credential", models.AuthResult{Reason: models.KindInvalidCredential}, models.ErrInvalidCredential},
		{"rejected while blocked", models.AuthResult{Reason: models.KindBlocked, Blocked: true}, models.ErrDeviceBlocked},
		{"failure that triggers the block", models.AuthResult{Reason: models.KindInvalidCredential, Blocked: true}, models.ErrDeviceBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
