package models

import "time"

// DeviceAttempt is the persisted attempt record for one device fingerprint
type DeviceAttempt struct {
	ID           int64      `db:"id"`
	DeviceID     string     `db:"device_id"`
	Attempts     int        `db:"attempts"`
	BlockedUntil *time.Time `db:"blocked_until"`
	LastAttempt  time.Time  `db:"last_attempt"`
	CreatedAt    time.Time  `db:"created_at"`
}

// IsBlocked reports whether the record carries a block that is still active at now
func (a *DeviceAttempt) IsBlocked(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

// BlockExpired reports whether the record was blocked and the block has lapsed.
// An expired block logically resets the device to a clear state.
func (a *DeviceAttempt) BlockExpired(now time.Time) bool {
	return a.BlockedUntil != nil && !now.Before(*a.BlockedUntil)
}

// EffectiveAttempts is the attempt count as seen at now
func (a *DeviceAttempt) EffectiveAttempts(now time.Time) int {
	if a.BlockExpired(now) {
		return 0
	}
	return a.Attempts
}

// Clone returns a deep copy so callers can't mutate stored state
func (a *DeviceAttempt) Clone() *DeviceAttempt {
	if a == nil {
		return nil
	}
	c := *a
	if a.BlockedUntil != nil {
		until := *a.BlockedUntil
		c.BlockedUntil = &until
	}
	return &c
}
