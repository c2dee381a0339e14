package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	dbMaxRetries = 60
	dbRetryDelay = 2 * time.Second
)

// normalizeDatabaseURL rewrites postgresql:// to postgres:// and defaults
// sslmode to disable when the URL does not set it.
func normalizeDatabaseURL(databaseURL string) string {
	if databaseURL == "" {
		return databaseURL
	}
	if strings.HasPrefix(databaseURL, "postgresql:") {
		databaseURL = "postgres" + strings.TrimPrefix(databaseURL, "postgresql")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL = databaseURL + separator + "sslmode=disable"
	}
	return databaseURL
}

// openDB connects to PostgreSQL through the pgx stdlib driver, waiting for
// the database to come up.
func openDB(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	config, err := pgx.ParseConfig(normalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	for i := 0; i < dbMaxRetries; i++ {
		db := stdlib.OpenDB(*config)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			db.SetMaxOpenConns(20)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(30 * time.Minute)
			logger.Info("Database connection established", "component", "storage")
			return db, nil
		}
		db.Close()

		if i == dbMaxRetries-1 {
			break
		}
		// Log the actual error for the first attempts and every 10th after that
		if i%10 == 0 || i < 5 {
			logger.Warn("Database not ready, retrying",
				"component", "storage", "attempt", i+1, "max_attempts", dbMaxRetries, "retry_in", dbRetryDelay, "error", err)
		} else {
			logger.Warn("Database not ready, retrying",
				"component", "storage", "attempt", i+1, "max_attempts", dbMaxRetries)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dbRetryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", dbMaxRetries, err)
}
