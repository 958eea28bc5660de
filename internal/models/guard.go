package models

import "time"

// DeviceStatus is the guard's view of a device at a point in time
type DeviceStatus struct {
	DeviceID     string     `json:"device_id"`
	Blocked      bool       `json:"blocked"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	Degraded     bool       `json:"degraded"`
}

// Remaining returns how long the device stays blocked, zero if not blocked
func (s DeviceStatus) Remaining(now time.Time) time.Duration {
	if !s.Blocked || s.BlockedUntil == nil {
		return 0
	}
	if d := s.BlockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// AuthResult is the outcome of one authentication attempt
type AuthResult struct {
	Granted           bool       `json:"granted"`
	Reason            ErrorKind  `json:"reason,omitempty"`
	Attempts          int        `json:"attempts"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	Blocked           bool       `json:"blocked"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	Warning           bool       `json:"warning"`
	Degraded          bool       `json:"degraded"`
}

// Err returns nil for a granted result, otherwise the sentinel for why access
// was denied. Any blocked result maps to ErrDeviceBlocked, including the failure
// that triggered the block.
func (r AuthResult) Err() error {
	switch {
	case r.Granted:
		return nil
	case r.Blocked:
		return ErrDeviceBlocked
	case r.Reason == "":
		return ErrInvalidCredential
	default:
		return r.Reason.Err()
	}
}

// Credential is what the presentation layer submits
type Credential struct {
	Username string
	Password string
}
