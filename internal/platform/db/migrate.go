package db

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// MigrationResult reports where the schema stands after Migrate.
type MigrationResult struct {
	Version uint
	Changed bool
}

// Migrate applies every pending up migration found in fsys.
func Migrate(pool *pgxpool.Pool, fsys fs.FS) (MigrationResult, error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return MigrationResult{}, fmt.Errorf("platform/db: migration source: %w", err)
	}

	driver, err := postgres.WithInstance(stdlib.OpenDBFromPool(pool), &postgres.Config{
		MultiStatementEnabled: true,
		SchemaName:            "public",
	})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("platform/db: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("platform/db: migration instance: %w", err)
	}
	defer m.Close()

	result := MigrationResult{Changed: true}
	if err := m.Up(); err != nil {
		var dirty migrate.ErrDirty
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			result.Changed = false
		case errors.As(err, &dirty):
			return MigrationResult{}, fmt.Errorf("platform/db: dirty schema at version %d", dirty.Version)
		default:
			return MigrationResult{}, fmt.Errorf("platform/db: migrate up: %w", err)
		}
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("platform/db: migration version: %w", err)
	}
	result.Version = version
	return result, nil
}
