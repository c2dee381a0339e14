package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies all pending migrations. It uses its own connection
// because closing the migrate instance closes the underlying database.
func runMigrations(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	db, err := openDB(ctx, databaseURL, logger)
	if err != nil {
		return err
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("Schema is up to date", "component", "storage", "version", version, "dirty", dirty)
	return nil
}

// setupDatabase creates tables and seeds the default categories
func setupDatabase(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...", "component", "storage")
	if err := runMigrations(ctx, cfg.DatabaseURL, logger); err != nil {
		return err
	}

	db, err := openDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Seeding categories...", "component", "storage")
	n, err := seedDefaultCategories(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("Categories seeded successfully", "component", "storage", "rows_affected", n)
	return nil
}
