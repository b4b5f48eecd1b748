package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/porthorian/modeltest/pkg/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationsTableSpec(t *testing.T) {
	spec, err := parseMigrationsTableSpec("modeltest.schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, migrationsTableSpec{Schema: "modeltest", Table: "schema_migrations"}, spec)

	spec, err = parseMigrationsTableSpec(`"my schema"."versions"`)
	require.NoError(t, err)
	assert.Equal(t, migrationsTableSpec{Schema: "my schema", Table: "versions"}, spec)

	_, err = parseMigrationsTableSpec("a.b.c")
	assert.Error(t, err)
}

func TestNormalizeDatabaseURL(t *testing.T) {
	got, err := normalizeDatabaseURL("postgres://user@localhost/db", sqlstore.DriverPgx)
	require.NoError(t, err)
	assert.Equal(t, "pgx5://user@localhost/db", got)

	got, err = normalizeDatabaseURL("/tmp/model.db", sqlstore.DriverSqlite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/model.db", got)

	_, err = normalizeDatabaseURL("mysql://localhost/db", sqlstore.DriverPgx)
	assert.Error(t, err)
}

func TestApplyMigrationsTable(t *testing.T) {
	got, err := applyMigrationsTable("pgx5://localhost/db", sqlstore.DriverPgx, "modeltest.versions")
	require.NoError(t, err)
	assert.Contains(t, got, "x-migrations-table-quoted=true")
	assert.Contains(t, got, "x-migrations-table=%22modeltest%22.%22versions%22")

	_, err = applyMigrationsTable("sqlite3:///tmp/model.db", sqlstore.DriverSqlite, "modeltest.versions")
	assert.Error(t, err)

	got, err = applyMigrationsTable("sqlite3:///tmp/model.db?x-migrations-table=custom", sqlstore.DriverSqlite, "versions")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/model.db?x-migrations-table=custom", got)
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestMigrateSqliteUpAndDown(t *testing.T) {
	databaseURL := "sqlite3://" + filepath.ToSlash(filepath.Join(t.TempDir(), "model.db"))

	out := runCLI(t, "migrate", "up", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "Applied all pending migrations")

	out = runCLI(t, "migrate", "version", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "2")

	out = runCLI(t, "migrate", "up", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "No schema changes to apply.")

	out = runCLI(t, "migrate", "down", "5", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "Rolled back 2 migration step(s)")

	out = runCLI(t, "migrate", "version", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "No migrations applied.")

	out = runCLI(t, "migrate", "force", "1", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "Forced migration version to 1.")

	out = runCLI(t, "migrate", "version", "--driver", "sqlite", "--database-url", databaseURL)
	assert.Contains(t, out, "1")
}

func TestProvidersCommand(t *testing.T) {
	t.Setenv("MODELTEST_CONFIG", "")
	t.Setenv("MODELTEST_PARAMETERS", "")

	out := runCLI(t, "providers", "--parameters", "Map,Federation")
	assert.Contains(t, out, "parameters: parameters.Baseline, parameters.Map, parameters.Federation")
	assert.Contains(t, out, "userStorage")
	assert.Regexp(t, `executors\s+internal`, out)
	assert.Regexp(t, `realm\s+public`, out)
	assert.NotContains(t, out, "connectionsSql")
}

func TestScopeOverridesMergeOverConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modeltest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parameters: [Map]
spi:
  userStorage:
    providers:
      static:
        user.alice: secret
        iterations: "1000"
`), 0o600))
	t.Setenv("MODELTEST_PARAMETERS", "")

	config, err := loadHarnessConfig(providersConfig{
		ConfigPath: path,
		Parameters: "Federation",
		Overrides:  []string{"userStorage.static.iterations=10", "userStorage.static.user.bob=pw", "realm.provider=map"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Map", "Federation"}, config.Parameters)
	scope := config.Spi.Scope("userStorage", "static")
	assert.Equal(t, "secret", scope.Get("user.alice"))
	assert.Equal(t, "pw", scope.Get("user.bob"))
	assert.Equal(t, 10, scope.GetInt("iterations", 0))
	assert.Equal(t, "map", config.Spi.DefaultProvider("realm"))
}

func TestScopeOverridesRejectMalformed(t *testing.T) {
	for _, raw := range []string{"noequals", "realm=map", "a..b=c", "realm.default=x"} {
		_, err := parseScopeOverrides([]string{raw})
		assert.Error(t, err, raw)
	}
}
