package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/repositories"
)

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) Prune(now time.Time, retention time.Duration) int {
	p.calls.Add(1)
	return 0
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCleanupManager_RunOncePrunesMemoryStore(t *testing.T) {
	store := repositories.NewMemoryAttemptStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := now.Add(-time.Minute)
	active := now.Add(time.Hour)
	seed := []*models.DeviceAttempt{
		{DeviceID: "expired", Attempts: 3, BlockedUntil: &expired, LastAttempt: now.Add(-6 * time.Minute)},
		{DeviceID: "active", Attempts: 3, BlockedUntil: &active, LastAttempt: now.Add(-48 * time.Hour)},
		{DeviceID: "stale", Attempts: 1, LastAttempt: now.Add(-48 * time.Hour)},
		{DeviceID: "recent", Attempts: 1, LastAttempt: now.Add(-time.Minute)},
	}
	for _, rec := range seed {
		_, err := store.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	cm := NewCleanupManager(map[string]Pruner{"session": store}, discardLogger(), time.Minute, 24*time.Hour)
	cm.now = func() time.Time { return now }

	removed := cm.RunOnce()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, store.Len())
	_, err := store.Get(ctx, "active")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "recent")
	assert.NoError(t, err)
}

func TestCleanupManager_StartRunsImmediatelyAndStops(t *testing.T) {
	p := &countingPruner{}
	cm := NewCleanupManager(map[string]Pruner{"fallback": p}, discardLogger(), time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := NewCleanupManager(map[string]Pruner{}, discardLogger(), time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
