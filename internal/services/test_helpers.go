package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/deviceguard/internal/models"
)

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	GetFunc    func(ctx context.Context, deviceID string) (*models.DeviceAttempt, error)
	UpsertFunc func(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error)
}

func (m *MockAttemptStore) Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAttemptStore) Upsert(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	return rec.Clone(), nil
}

// MockCredentialChecker implements CredentialChecker for testing
type MockCredentialChecker struct {
	VerifyFunc func(ctx context.Context, cred models.Credential) (bool, error)
}

func (m *MockCredentialChecker) Verify(ctx context.Context, cred models.Credential) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, cred)
	}
	return false, nil
}

// MockAlertNotifier implements AlertNotifier for testing and records every alert
type MockAlertNotifier struct {
	mu     sync.Mutex
	Alerts []*models.DeviceAttempt
	Err    error
}

func (m *MockAlertNotifier) DeviceBlocked(ctx context.Context, rec *models.DeviceAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, rec.Clone())
	return m.Err
}

// Count returns the number of alerts received
func (m *MockAlertNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

// FakeClock is a settable Clock for testing
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock reading t
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
