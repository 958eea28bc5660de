package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/jackc/pgx/v5"
)

const deviceAttemptColumns = `id, device_id, attempts, blocked_until, last_attempt, created_at`

// DeviceAttemptRepository stores attempt records in PostgreSQL
type DeviceAttemptRepository struct {
	db *database.DB
}

// NewDeviceAttemptRepository creates a new DeviceAttemptRepository
func NewDeviceAttemptRepository(db *database.DB) *DeviceAttemptRepository {
	return &DeviceAttemptRepository{db: db}
}

// Get returns the record for deviceID, or models.ErrNotFound
func (r *DeviceAttemptRepository) Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error) {
	query := `SELECT ` + deviceAttemptColumns + ` FROM device_attempts WHERE device_id = $1`

	rec, err := scanDeviceAttempt(r.db.Pool.QueryRow(ctx, query, deviceID))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return rec, nil
}

// Upsert inserts or replaces the record keyed by DeviceID. Concurrent writers
// for the same device resolve last-writer-wins.
func (r *DeviceAttemptRepository) Upsert(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error) {
	query := `
		INSERT INTO device_attempts (device_id, attempts, blocked_until, last_attempt)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			blocked_until = EXCLUDED.blocked_until,
			last_attempt = EXCLUDED.last_attempt
		RETURNING ` + deviceAttemptColumns

	saved, err := scanDeviceAttempt(r.db.Pool.QueryRow(ctx, query,
		rec.DeviceID,
		rec.Attempts,
		rec.BlockedUntil,
		rec.LastAttempt,
	))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return saved, nil
}

// ListBlocked returns devices whose block is still active at now, soonest expiry first
func (r *DeviceAttemptRepository) ListBlocked(ctx context.Context, now time.Time) ([]*models.DeviceAttempt, error) {
	query := `SELECT ` + deviceAttemptColumns + ` FROM device_attempts
		WHERE blocked_until IS NOT NULL AND blocked_until > $1
		ORDER BY blocked_until ASC`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DeviceAttempt
	for rows.Next() {
		rec, err := scanDeviceAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDeviceAttempt(row pgx.Row) (*models.DeviceAttempt, error) {
	var rec models.DeviceAttempt
	err := row.Scan(
		&rec.ID,
		&rec.DeviceID,
		&rec.Attempts,
		&rec.BlockedUntil,
		&rec.LastAttempt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
