package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/models"
)

// SQLiteAttemptRepository stores attempt records in a local SQLite file.
// Timestamps are kept as unix nanoseconds.
type SQLiteAttemptRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteAttemptRepository creates a new SQLiteAttemptRepository
func NewSQLiteAttemptRepository(db *database.SQLiteDB) *SQLiteAttemptRepository {
	return &SQLiteAttemptRepository{db: db}
}

// Get returns the record for deviceID, or models.ErrNotFound
func (r *SQLiteAttemptRepository) Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error) {
	query := `SELECT ` + deviceAttemptColumns + ` FROM device_attempts WHERE device_id = ?`

	rec, err := scanSQLiteAttempt(r.db.SQL.QueryRowContext(ctx, query, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return rec, err
}

// Upsert inserts or replaces the record keyed by DeviceID
func (r *SQLiteAttemptRepository) Upsert(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error) {
	query := `
		INSERT INTO device_attempts (device_id, attempts, blocked_until, last_attempt, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			attempts = excluded.attempts,
			blocked_until = excluded.blocked_until,
			last_attempt = excluded.last_attempt
		RETURNING ` + deviceAttemptColumns

	var blockedUntil sql.NullInt64
	if rec.BlockedUntil != nil {
		blockedUntil = sql.NullInt64{Int64: rec.BlockedUntil.UnixNano(), Valid: true}
	}

	return scanSQLiteAttempt(r.db.SQL.QueryRowContext(ctx, query,
		rec.DeviceID,
		rec.Attempts,
		blockedUntil,
		rec.LastAttempt.UnixNano(),
		rec.LastAttempt.UnixNano(),
	))
}

// ListBlocked returns devices whose block is still active at now, soonest expiry first
func (r *SQLiteAttemptRepository) ListBlocked(ctx context.Context, now time.Time) ([]*models.DeviceAttempt, error) {
	query := `SELECT ` + deviceAttemptColumns + ` FROM device_attempts
		WHERE blocked_until IS NOT NULL AND blocked_until > ?
		ORDER BY blocked_until ASC`

	rows, err := r.db.SQL.QueryContext(ctx, query, now.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DeviceAttempt
	for rows.Next() {
		rec, err := scanSQLiteAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAttempt(row sqlScanner) (*models.DeviceAttempt, error) {
	var (
		rec          models.DeviceAttempt
		blockedUntil sql.NullInt64
		lastAttempt  int64
		createdAt    int64
	)
	if err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Attempts, &blockedUntil, &lastAttempt, &createdAt); err != nil {
		return nil, err
	}

	if blockedUntil.Valid {
		t := time.Unix(0, blockedUntil.Int64).UTC()
		rec.BlockedUntil = &t
	}
	rec.LastAttempt = time.Unix(0, lastAttempt).UTC()
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}
