// Package database owns the sqlite handle backing the fund ledger and the
// schema migrations that shape it.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/username/zynbudget/backend/src/logger"
	_ "modernc.org/sqlite"
)

// DB is the process-wide handle. Every model and service writes through it,
// so the snapshot UNIQUE constraints are enforced in one place.
var DB *sql.DB

// InitDB opens the ledger database. Monetary columns are TEXT; values cross
// this boundary as decimal strings, never as floats.
func InitDB(databasePath string) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", databasePath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	// Single writer; sqlite serializes anyway and this avoids lock churn.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		stdlog.Fatalf("failed to ping database: %v", err)
	}
	DB = db
	logger.L.Info("Database connection established with WAL mode, busy_timeout, and foreign_keys enabled.")
}

// migrationsSourceURL resolves the migrations directory: a fixed container
// path in production, the working tree otherwise.
func migrationsSourceURL() string {
	if os.Getenv("GO_ENV") == "PRO" {
		return "file:///app/db/migrations"
	}
	cwd, err := os.Getwd()
	if err != nil {
		stdlog.Fatalf("failed to get current working directory: %v", err)
	}
	return fmt.Sprintf("file://%s", filepath.ToSlash(filepath.Join(cwd, "db", "migrations")))
}

// RunMigrations applies any pending schema migrations. The ledger schema
// lives entirely in db/migrations; tests load the same files, so there is no
// second source of truth to drift.
func RunMigrations(databasePath string) {
	if DB == nil {
		logger.L.Error("Database connection is not initialized before running migrations")
		return
	}

	driver, err := sqlite.WithInstance(DB, &sqlite.Config{})
	if err != nil {
		logger.L.Error("Could not create sqlite migration driver", "error", err)
		stdlog.Fatalf("could not create sqlite migration driver: %v", err)
	}

	sourceURL := migrationsSourceURL()
	m, err := migrate.NewWithDatabaseInstance(sourceURL, databasePath, driver)
	if err != nil {
		logger.L.Error("Migration instance creation failed", "source", sourceURL, "error", err)
		stdlog.Fatalf("migration instance creation failed: %v", err)
	}

	logger.L.Info("Applying database migrations...", "source", sourceURL)
	switch err = m.Up(); {
	case err == nil:
		logger.L.Info("Database migrations applied successfully.")
	case errors.Is(err, migrate.ErrNoChange):
		logger.L.Info("No new database migrations to apply.")
	default:
		logger.L.Error("Failed to apply migrations", "error", err)
		stdlog.Fatalf("failed to apply migrations: %v", err)
	}
}
