package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedatabase "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationsTable is the version table used when none is configured.
const MigrationsTable = "modeltest_schema_migrations"

// MigrationSource returns the embedded migrations for driver.
func MigrationSource(driver Driver) (source.Driver, error) {
	dir, err := migrationsDir(driver)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open embedded migrations %s: %w", dir, err)
	}
	return src, nil
}

// NewMigrator returns a migrate runner over db. Closing the runner closes db.
func NewMigrator(db *sql.DB, driver Driver, table string) (*migrate.Migrate, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if strings.TrimSpace(table) == "" {
		table = MigrationsTable
	}

	var (
		instance migratedatabase.Driver
		name     string
		err      error
	)
	switch driver {
	case DriverSqlite:
		name = "sqlite3"
		instance, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: table})
	case DriverPgx:
		name = "pgx5"
		instance, err = migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: table})
	default:
		return nil, unsupportedDriver(driver)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: create %s migration driver: %w", name, err)
	}

	src, err := MigrationSource(driver)
	if err != nil {
		_ = instance.Close()
		return nil, err
	}

	runner, err := migrate.NewWithInstance("iofs", src, name, instance)
	if err != nil {
		_ = src.Close()
		_ = instance.Close()
		return nil, fmt.Errorf("sqlstore: create migrate runner: %w", err)
	}
	return runner, nil
}

// Migrate applies every pending migration on a dedicated connection pool.
func Migrate(driver Driver, dsn string, table string) (version uint, err error) {
	db, err := open(driver, dsn)
	if err != nil {
		return 0, err
	}

	runner, err := NewMigrator(db, driver, table)
	if err != nil {
		_ = db.Close()
		return 0, err
	}
	defer func() {
		sourceErr, databaseErr := runner.Close()
		if closeErr := errors.Join(sourceErr, databaseErr); closeErr != nil && err == nil {
			err = fmt.Errorf("sqlstore: close migrate runner: %w", closeErr)
		}
	}()

	if err := runner.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("sqlstore: apply migrations: %w", err)
	}

	version, dirty, err := runner.Version()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("sqlstore: migration version %d is dirty", version)
	}
	return version, nil
}

func migrationsDir(driver Driver) (string, error) {
	switch driver {
	case DriverSqlite:
		return "migrations/sqlite", nil
	case DriverPgx:
		return "migrations/postgres", nil
	default:
		return "", unsupportedDriver(driver)
	}
}
