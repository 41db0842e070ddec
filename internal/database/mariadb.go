// Package database provides connection setup for MariaDB, SQLite and Redis.
// Connections are created once at startup and shared across the application
// via dependency injection. This package owns the connection lifecycle (open,
// configure pool, ping, migrate, close).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/aarangop/note-rags-web-ui/internal/config"
)

const (
	maxPingAttempts = 10
	pingTimeout     = 5 * time.Second
)

// Open connects to the database selected by cfg.Driver and returns the pool
// together with its dialect.
func Open(cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := NewSQLite(cfg.SQLitePath)
		return db, DialectSQLite, err
	default:
		db, err := NewMariaDB(cfg)
		return db, DialectMySQL, err
	}
}

// NewMariaDB creates a new MariaDB connection pool configured with the
// settings from the provided config. It pings the database to verify
// connectivity before returning.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// MariaDB may still be starting when the app container launches.
	if err := pingWithBackoff("mariadb", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// pingWithBackoff retries ping with exponential backoff, capped at 30s,
// until it succeeds or maxPingAttempts is reached.
func pingWithBackoff(name string, ping func(ctx context.Context) error) error {
	backoff := 1 * time.Second
	var err error

	for attempt := 1; attempt <= maxPingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = ping(ctx)
		cancel()

		if err == nil {
			return nil
		}
		if attempt == maxPingAttempts {
			break
		}

		slog.Warn(name+" not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxPingAttempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}
	return fmt.Errorf("pinging %s after %d attempts: %w", name, maxPingAttempts, err)
}
