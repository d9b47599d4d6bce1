package db

import (
	"errors"
	"fmt"

	"github.com/ravenloom/backend/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsPath is used when MIGRATIONS_PATH is not set.
const DefaultMigrationsPath = "internal/db/migrations"

// Migrate applies all pending up migrations found under path to the
// database at databaseURL. A database that is already current is not an error.
func Migrate(path, databaseURL string) error {
	if path == "" {
		path = DefaultMigrationsPath
	}
	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("[DB] Schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("[DB] Applied migrations", "version", version, "dirty", dirty)
	return nil
}
