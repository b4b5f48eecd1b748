package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedatabase "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/porthorian/modeltest/pkg/storage/sqlstore"
	"github.com/spf13/cobra"
)

const embeddedSourceURL = "iofs://embedded"

type migrateConfig struct {
	Driver          string
	DatabaseURL     string
	MigrationsTable string
	MigrationsPath  string
}

func init() {
	rootCmd.AddCommand(newMigrateCommand())
}

func newMigrateCommand() *cobra.Command {
	cfg := migrateConfig{
		Driver: string(sqlstore.DriverSqlite),
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run sql store schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	migrateCmd.PersistentFlags().StringVar(&cfg.Driver, "driver", cfg.Driver, "Database driver. Supported: sqlite, pgx.")
	migrateCmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", "", "Database connection URL (sqlite3://path or pgx5://...). Can also be set via MODELTEST_MIGRATE_DATABASE_URL.")
	migrateCmd.PersistentFlags().StringVar(&cfg.MigrationsTable, "migrations-table", "", "Migrations version table name. Supports table or schema.table format for pgx. Can also be set via MODELTEST_MIGRATE_MIGRATIONS_TABLE.")
	migrateCmd.PersistentFlags().StringVar(&cfg.MigrationsPath, "migrations-path", "", "Path or source URL for migration files. Defaults to the migrations embedded in the binary.")

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up [steps]",
		Short: "Run schema migrations up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, hasSteps, err := parseMigrationStepsArg(args)
			if err != nil {
				return err
			}

			return withMigrationRunner(cmd, cfg, func(runner *migrate.Migrate, sourceURL string) error {
				if hasSteps {
					err = runner.Steps(steps)
				} else {
					err = runner.Up()
				}

				if err != nil {
					if isNoChangeBoundaryError(err) {
						cmd.Println("No schema changes to apply.")
						return nil
					}

					var shortLimit migrate.ErrShortLimit
					if hasSteps && errors.As(err, &shortLimit) {
						applied := steps - int(shortLimit.Short)
						if applied <= 0 {
							cmd.Println("No schema changes to apply.")
							return nil
						}

						cmd.Printf(
							"Applied %d migration step(s) from %s (requested %d step(s), reached migration boundary)\n",
							applied,
							sourceURL,
							steps,
						)
						return nil
					}

					return fmt.Errorf("apply migrations: %w", err)
				}

				if hasSteps {
					cmd.Printf("Applied %d migration step(s) from %s\n", steps, sourceURL)
					return nil
				}

				cmd.Printf("Applied all pending migrations from %s\n", sourceURL)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down <steps>",
		Short: "Rollback schema migrations down by step count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _, err := parseMigrationStepsArg(args)
			if err != nil {
				return err
			}
			migrationsTable := resolveMigrationsTable(cfg.MigrationsTable)

			return withMigrationRunner(cmd, cfg, func(runner *migrate.Migrate, sourceURL string) error {
				if err := runner.Steps(-steps); err != nil {
					if isNoChangeBoundaryError(err) {
						cmd.Println("No schema changes to rollback.")
						return nil
					}
					if isDroppedMigrationsTableError(err, migrationsTable) {
						cmd.Printf("Rolled back %d migration step(s) from %s\n", steps, sourceURL)
						cmd.Println("Migration tracking table was removed by rollback and will be recreated on the next run.")
						return nil
					}

					var shortLimit migrate.ErrShortLimit
					if errors.As(err, &shortLimit) {
						rolledBack := steps - int(shortLimit.Short)
						if rolledBack <= 0 {
							cmd.Println("No schema changes to rollback.")
							return nil
						}

						cmd.Printf(
							"Rolled back %d migration step(s) from %s (requested %d step(s), reached migration boundary)\n",
							rolledBack,
							sourceURL,
							steps,
						)
						return nil
					}

					return fmt.Errorf("rollback migrations: %w", err)
				}

				cmd.Printf("Rolled back %d migration step(s) from %s\n", steps, sourceURL)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationRunner(cmd, cfg, func(runner *migrate.Migrate, sourceURL string) error {
				version, dirty, err := runner.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					cmd.Println("No migrations applied.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}

				if dirty {
					cmd.Printf("%d (dirty)\n", version)
					return nil
				}
				cmd.Printf("%d\n", version)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force-set migration version (-1 for nil version)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersionArg(args[0])
			if err != nil {
				return err
			}

			return withMigrationRunner(cmd, cfg, func(runner *migrate.Migrate, sourceURL string) error {
				if err := runner.Force(version); err != nil {
					return fmt.Errorf("force migration version: %w", err)
				}

				if version == -1 {
					cmd.Println("Forced migration version to -1 (no version).")
					return nil
				}

				cmd.Printf("Forced migration version to %d.\n", version)
				return nil
			})
		},
	})

	return migrateCmd
}

func lookupEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func resolveDatabaseURL(databaseURLFlag string, driver sqlstore.Driver) (string, error) {
	databaseURL := strings.TrimSpace(databaseURLFlag)
	if databaseURL == "" {
		databaseURL = lookupEnv("MODELTEST_MIGRATE_DATABASE_URL")
	}
	if databaseURL == "" {
		return "", errors.New("missing database URL: set --database-url or MODELTEST_MIGRATE_DATABASE_URL")
	}
	return normalizeDatabaseURL(databaseURL, driver)
}

// normalizeDatabaseURL maps plain postgres URLs and sqlite file paths onto
// the schemes the migrate drivers register.
func normalizeDatabaseURL(databaseURL string, driver sqlstore.Driver) (string, error) {
	switch driver {
	case sqlstore.DriverPgx:
		for _, scheme := range []string{"postgres://", "postgresql://", "pgx://"} {
			if strings.HasPrefix(databaseURL, scheme) {
				return "pgx5://" + strings.TrimPrefix(databaseURL, scheme), nil
			}
		}
		if !strings.HasPrefix(databaseURL, "pgx5://") {
			return "", fmt.Errorf("invalid --database-url for pgx: expected a pgx5:// or postgres:// URL")
		}
	case sqlstore.DriverSqlite:
		if strings.HasPrefix(databaseURL, "sqlite://") {
			return "sqlite3://" + strings.TrimPrefix(databaseURL, "sqlite://"), nil
		}
		if !strings.Contains(databaseURL, "://") {
			return "sqlite3://" + databaseURL, nil
		}
		if !strings.HasPrefix(databaseURL, "sqlite3://") {
			return "", fmt.Errorf("invalid --database-url for sqlite: expected a sqlite3:// URL or a file path")
		}
	}
	return databaseURL, nil
}

func parseMigrationStepsArg(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}

	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || steps <= 0 {
		return 0, false, fmt.Errorf("invalid migration steps %q: expected a positive integer", args[0])
	}

	return steps, true, nil
}

func parseForceVersionArg(arg string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || version < -1 {
		return 0, fmt.Errorf("invalid force version %q: expected an integer >= -1", arg)
	}
	return version, nil
}

func newMigrationRunner(cfg migrateConfig) (*migrate.Migrate, string, error) {
	driver, err := sqlstore.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, "", fmt.Errorf("unsupported --driver %q: %w", cfg.Driver, err)
	}

	databaseURL, err := resolveDatabaseURL(cfg.DatabaseURL, driver)
	if err != nil {
		return nil, "", err
	}
	migrationsTable := resolveMigrationsTable(cfg.MigrationsTable)
	if err := ensureMigrationsSchemaExists(databaseURL, driver, migrationsTable); err != nil {
		return nil, "", err
	}
	databaseURL, err = applyMigrationsTable(databaseURL, driver, migrationsTable)
	if err != nil {
		return nil, "", err
	}

	sourceURL, src, err := resolveMigrationsSource(driver, cfg.MigrationsPath)
	if err != nil {
		return nil, "", err
	}

	var runner *migrate.Migrate
	if src != nil {
		runner, err = migrate.NewWithSourceInstance("iofs", src, databaseURL)
	} else {
		runner, err = migrate.New(sourceURL, databaseURL)
	}
	if err != nil {
		if src != nil {
			_ = src.Close()
		}
		return nil, "", fmt.Errorf("create migrate runner: %w", err)
	}
	return runner, sourceURL, nil
}

func resolveMigrationsTable(flagValue string) string {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = lookupEnv("MODELTEST_MIGRATE_MIGRATIONS_TABLE")
	}
	if value == "" {
		value = sqlstore.MigrationsTable
	}
	return value
}

func applyMigrationsTable(databaseURL string, driver sqlstore.Driver, table string) (string, error) {
	spec, err := parseMigrationsTableSpec(table)
	if err != nil {
		return "", err
	}
	if spec.Table == "" {
		return databaseURL, nil
	}
	if spec.Schema != "" && driver != sqlstore.DriverPgx {
		return "", fmt.Errorf("invalid migrations table %q: schemas are only supported by pgx", table)
	}

	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse --database-url: %w", err)
	}

	query := parsed.Query()
	if strings.TrimSpace(query.Get("x-migrations-table")) != "" {
		return databaseURL, nil
	}

	if spec.Schema != "" {
		query.Set("x-migrations-table", pgx.Identifier{spec.Schema, spec.Table}.Sanitize())
		query.Set("x-migrations-table-quoted", "true")
	} else {
		query.Set("x-migrations-table", spec.Table)
	}

	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

type migrationsTableSpec struct {
	Schema string
	Table  string
}

var quotedMigrationsTableRegexp = regexp.MustCompile(`"(.*?)"`)

func parseMigrationsTableSpec(value string) (migrationsTableSpec, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return migrationsTableSpec{}, nil
	}

	if strings.Contains(raw, "\"") {
		parts := quotedMigrationsTableRegexp.FindAllStringSubmatch(raw, -1)
		if len(parts) == 1 {
			if strings.TrimSpace(parts[0][1]) == "" {
				return migrationsTableSpec{}, fmt.Errorf("invalid migrations table %q", value)
			}
			return migrationsTableSpec{Table: parts[0][1]}, nil
		}
		if len(parts) == 2 {
			if strings.TrimSpace(parts[0][1]) == "" || strings.TrimSpace(parts[1][1]) == "" {
				return migrationsTableSpec{}, fmt.Errorf("invalid migrations table %q", value)
			}
			return migrationsTableSpec{
				Schema: parts[0][1],
				Table:  parts[1][1],
			}, nil
		}

		return migrationsTableSpec{}, fmt.Errorf("invalid migrations table %q: expected table or schema.table", value)
	}

	parts := strings.Split(raw, ".")
	switch len(parts) {
	case 1:
		return migrationsTableSpec{Table: parts[0]}, nil
	case 2:
		if strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return migrationsTableSpec{}, fmt.Errorf("invalid migrations table %q", value)
		}
		return migrationsTableSpec{
			Schema: parts[0],
			Table:  parts[1],
		}, nil
	default:
		return migrationsTableSpec{}, fmt.Errorf("invalid migrations table %q: expected table or schema.table", value)
	}
}

func ensureMigrationsSchemaExists(databaseURL string, driver sqlstore.Driver, table string) error {
	if driver != sqlstore.DriverPgx {
		return nil
	}

	spec, err := parseMigrationsTableSpec(table)
	if err != nil {
		return err
	}
	if spec.Schema == "" {
		return nil
	}

	parsedURL, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse --database-url: %w", err)
	}
	sanitized := migrate.FilterCustomQuery(parsedURL)
	sanitized.Scheme = "postgres"

	db, err := sql.Open("pgx", sanitized.String())
	if err != nil {
		return fmt.Errorf("open database for schema bootstrap: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{spec.Schema}.Sanitize())
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("ensure migrations schema %q exists: %w", spec.Schema, err)
	}

	return nil
}

// resolveMigrationsSource returns the embedded source unless a path or
// source URL overrides it.
func resolveMigrationsSource(driver sqlstore.Driver, migrationsPath string) (string, source.Driver, error) {
	pathOrURL := strings.TrimSpace(migrationsPath)
	if pathOrURL == "" {
		src, err := sqlstore.MigrationSource(driver)
		if err != nil {
			return "", nil, err
		}
		return embeddedSourceURL + "/" + string(driver), src, nil
	}

	if strings.Contains(pathOrURL, "://") {
		return pathOrURL, nil, nil
	}

	absPath, err := filepath.Abs(pathOrURL)
	if err != nil {
		return "", nil, fmt.Errorf("resolve migrations path %q: %w", pathOrURL, err)
	}

	return "file://" + filepath.ToSlash(absPath), nil, nil
}

// withMigrationRunner opens a runner for cfg, hands it to fn and closes it
// afterwards, reporting close failures as warnings.
func withMigrationRunner(cmd *cobra.Command, cfg migrateConfig, fn func(runner *migrate.Migrate, sourceURL string) error) error {
	runner, sourceURL, err := newMigrationRunner(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeMigrationRunner(runner); closeErr != nil {
			cmd.PrintErrf("warning: failed to close migration runner cleanly: %v\n", closeErr)
		}
	}()

	return fn(runner, sourceURL)
}

func closeMigrationRunner(runner *migrate.Migrate) error {
	if runner == nil {
		return nil
	}

	sourceErr, databaseErr := runner.Close()
	return errors.Join(sourceErr, databaseErr)
}

func isNoChangeBoundaryError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return true
	}

	// golang-migrate returns bare os.ErrNotExist when a step command
	// reaches the migration boundary (already at latest/earliest version).
	return err == os.ErrNotExist
}

func isDroppedMigrationsTableError(err error, migrationsTable string) bool {
	var dbErr *migratedatabase.Error
	if !errors.As(err, &dbErr) || dbErr == nil {
		return false
	}

	query := strings.TrimSpace(string(dbErr.Query))
	if query == "" || !strings.HasPrefix(strings.ToUpper(query), "TRUNCATE ") {
		return false
	}

	spec, parseErr := parseMigrationsTableSpec(migrationsTable)
	if parseErr != nil || spec.Table == "" {
		return false
	}

	target := pgx.Identifier{spec.Table}.Sanitize()
	if spec.Schema != "" {
		target = pgx.Identifier{spec.Schema, spec.Table}.Sanitize()
	}
	if !strings.Contains(query, target) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(dbErr.OrigErr, &pgErr) && pgErr.Code == "3F000" {
		return true
	}

	return strings.Contains(strings.ToLower(dbErr.Error()), "schema") &&
		strings.Contains(strings.ToLower(dbErr.Error()), "does not exist")
}
