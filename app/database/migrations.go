package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

const migrationsTable = "schema_migrations"

// ErrDirtySchema means an earlier migration stopped halfway and the schema
// needs manual repair before the engine may write to it.
var ErrDirtySchema = errors.New("database schema is dirty")

// SchemaStatus reports the schema version after migrating and whether this
// call changed it.
type SchemaStatus struct {
	Version uint
	Applied bool
}

// RunMigrations brings the store schema up to date. It refuses to touch a
// dirty schema. The migrate instance is never closed; closing it closes db.
func RunMigrations(db *DB) (SchemaStatus, error) {
	var status SchemaStatus

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return status, fmt.Errorf("failed to prepare schema driver: %w", err)
	}

	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return status, fmt.Errorf("failed to read embedded schema: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return status, fmt.Errorf("failed to set up schema migration: %w", err)
	}

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return status, err
	}
	if dirty {
		return status, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return status, fmt.Errorf("failed to migrate schema from version %d: %w", before, err)
	default:
		status.Applied = true
	}

	if status.Version, _, err = schemaVersion(m); err != nil {
		return status, err
	}

	if status.Applied {
		slog.Info("Schema migrated", "from", before, "to", status.Version)
	}
	return status, nil
}

// schemaVersion treats a store without a migrations record as version 0.
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
