package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// RunMigrations applies all pending migrations from sourceURL,
// e.g. "file://internal/infrastructure/postgres/migrations".
func RunMigrations(logger zerolog.Logger, databaseURL, sourceURL string) error {
	return withMigrator(databaseURL, sourceURL, func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Str("source", sourceURL).Msg("schema up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		version, dirty, _ := m.Version()
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
		return nil
	})
}

// RunMigrationsDown rolls back the last migration.
func RunMigrationsDown(logger zerolog.Logger, databaseURL, sourceURL string) error {
	return withMigrator(databaseURL, sourceURL, func(m *migrate.Migrate) error {
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("roll back migration: %w", err)
		}

		version, _, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info().Msg("all migrations rolled back")
			return nil
		}
		logger.Info().Uint("version", version).Msg("migration rolled back")
		return nil
	})
}

// MigrationVersion reports the applied schema version. A database without
// migrations reports version 0.
func MigrationVersion(databaseURL, sourceURL string) (version uint, dirty bool, err error) {
	err = withMigrator(databaseURL, sourceURL, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

func withMigrator(databaseURL, sourceURL string, fn func(*migrate.Migrate) error) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", sourceURL, err)
	}
	defer m.Close()

	return fn(m)
}
