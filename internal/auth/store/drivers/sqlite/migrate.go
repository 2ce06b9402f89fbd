package sqlite

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite/migrations"
)

// ApplyMigrations applies any pending migrations to the Store's database. The
// migration files are embedded, so the binary carries its own schema and a
// fresh database file is usable straight after startup.
//
// Migrations run directly on the connection rather than inside a Store
// transaction; golang-migrate tracks the applied version itself, so running
// this on every boot is safe.
func (s *Store) ApplyMigrations() error {
	// 1. Create the SQLite migration driver on the existing connection
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}

	// 2. Create the iofs (embedded filesystem) source driver
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	// 3. Create the migrate instance to run migrations
	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return err
	}

	// 4. Apply all up migrations, an up to date schema is not an error
	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
