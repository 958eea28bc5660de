package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/deviceguard/internal/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteDB is the single-node alternative to the postgres pool
type SQLiteDB struct {
	SQL    *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database file at path and applies migrations
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under upsert races.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	if err := runMigrations(ctx, sqlDB, "sqlite3", "migrations/sqlite", logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database connection established",
			slog.String("store", config.StoreSQLite),
			slog.String("path", path))
	}

	return &SQLiteDB{SQL: sqlDB, logger: logger}, nil
}

func (db *SQLiteDB) Close() {
	if db.logger != nil {
		db.logger.Info("closing sqlite database")
	}
	db.SQL.Close()
}

func (db *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
