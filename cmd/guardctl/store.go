package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/deviceguard/internal/config"
	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/models"
	"github.com/BradenHooton/deviceguard/internal/repositories"
)

// attemptReader is the read side shared by the persistent stores
type attemptReader interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error)
	ListBlocked(ctx context.Context, now time.Time) ([]*models.DeviceAttempt, error)
}

var errSessionPolicy = errors.New("the session policy keeps attempts in the server's memory; there is no store to inspect")

// openReader connects to the store the server is configured with
func openReader(ctx context.Context) (attemptReader, func(), error) {
	dbCfg, guardCfg, err := config.LoadStore()
	if err != nil {
		return nil, nil, err
	}
	if guardCfg.Policy == config.PolicySession {
		return nil, nil, errSessionPolicy
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	switch guardCfg.Store {
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, dbCfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewSQLiteAttemptRepository(db), db.Close, nil
	default:
		db, err := database.NewConnection(&dbCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repositories.NewDeviceAttemptRepository(db), db.Close, nil
	}
}

// describe renders the state of rec as seen at now
func describe(rec *models.DeviceAttempt, now time.Time) string {
	switch {
	case rec.IsBlocked(now):
		return fmt.Sprintf("blocked until %s (%s left)",
			rec.BlockedUntil.Local().Format(time.RFC3339),
			rec.BlockedUntil.Sub(now).Round(time.Second))
	case rec.BlockExpired(now):
		return "clear (block expired)"
	case rec.Attempts > 0:
		return fmt.Sprintf("clear, %d failed attempt(s)", rec.Attempts)
	default:
		return "clear"
	}
}
