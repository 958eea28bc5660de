package repositories_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *repositories.SQLiteAttemptRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "guard.db"), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return repositories.NewSQLiteAttemptRepository(db)
}

func TestSQLiteAttemptRepository_GetMissing(t *testing.T) {
	repo := newSQLiteRepo(t)

	rec, err := repo.Get(context.Background(), "dev-A")

	assert.Nil(t, rec)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteAttemptRepository_UpsertRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	until := first.Add(24 * time.Hour)

	saved, err := repo.Upsert(ctx, &models.DeviceAttempt{DeviceID: "dev-A", Attempts: 3, BlockedUntil: &until, LastAttempt: first})
	require.NoError(t, err)
	require.NotNil(t, saved.BlockedUntil)
	assert.True(t, until.Equal(*saved.BlockedUntil))
	assert.True(t, first.Equal(saved.CreatedAt))

	later := first.Add(time.Hour)
	saved, err = repo.Upsert(ctx, &models.DeviceAttempt{DeviceID: "dev-A", Attempts: 0, LastAttempt: later})
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Attempts)
	assert.Nil(t, saved.BlockedUntil)
	assert.True(t, later.Equal(saved.LastAttempt))
	assert.True(t, first.Equal(saved.CreatedAt), "created_at must survive updates")

	got, err := repo.Get(ctx, "dev-A")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 0, got.Attempts)
}

func TestSQLiteAttemptRepository_ListBlocked(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	soon := now.Add(time.Minute)
	later := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	for _, rec := range []*models.DeviceAttempt{
		{DeviceID: "later", Attempts: 3, BlockedUntil: &later, LastAttempt: now},
		{DeviceID: "soon", Attempts: 3, BlockedUntil: &soon, LastAttempt: now},
		{DeviceID: "past", Attempts: 3, BlockedUntil: &past, LastAttempt: now},
		{DeviceID: "clear", Attempts: 1, LastAttempt: now},
	} {
		_, err := repo.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	blocked, err := repo.ListBlocked(ctx, now)

	require.NoError(t, err)
	require.Len(t, blocked, 2)
	assert.Equal(t, "soon", blocked[0].DeviceID)
	assert.Equal(t, "later", blocked[1].DeviceID)
}
