package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/golang-migrate/migrate/v4"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/porthorian/modeltest/pkg/storage/testsuite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFactory(t *testing.T, scope map[string]string) *provider.SessionFactory {
	t.Helper()

	m := provider.NewStaticManager()
	for _, spi := range model.Spis() {
		require.NoError(t, m.RegisterSpi(spi))
	}
	require.NoError(t, m.RegisterFactory(NewConnectionFactory(testr.New(t))))
	require.NoError(t, m.RegisterFactory(NewRealmFactory()))
	require.NoError(t, m.RegisterFactory(NewUserFactory()))

	config := provider.Config{
		model.SpiConnectionsSql: provider.SpiConfig{
			Providers: map[string]map[string]string{ConnectionFactoryID: scope},
		},
	}

	f := provider.NewSessionFactory(m, config, testr.New(t))
	require.NoError(t, f.Init(context.Background(), nil))
	t.Cleanup(func() {
		assert.NoError(t, f.Close(context.Background()))
	})
	return f
}

func sqliteDSN(t *testing.T) string {
	return filepath.Join(t.TempDir(), "modeltest.db")
}

func TestSqliteConformance(t *testing.T) {
	testsuite.RunAll(t, newSessionFactory(t, map[string]string{"driver": "sqlite3", "dsn": sqliteDSN(t)}))
}

func TestSqliteInMemoryDefault(t *testing.T) {
	testsuite.RunAll(t, newSessionFactory(t, nil))
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("MODELTEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MODELTEST_POSTGRES_DSN is not set")
	}
	testsuite.RunAll(t, newSessionFactory(t, map[string]string{"driver": "pgx", "dsn": dsn}))
}

func TestParseDriver(t *testing.T) {
	tests := []struct {
		raw  string
		want Driver
	}{
		{raw: "", want: DriverSqlite},
		{raw: "SQLite3", want: DriverSqlite},
		{raw: "postgres", want: DriverPgx},
		{raw: " pgx5 ", want: DriverPgx},
	}
	for _, tt := range tests {
		got, err := ParseDriver(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseDriver("mysql")
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))
}

func TestMigrationsApplyAndRollBack(t *testing.T) {
	dsn := sqliteDSN(t)

	version, err := Migrate(DriverSqlite, dsn, "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	version, err = Migrate(DriverSqlite, dsn, "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	db, err := open(DriverSqlite, dsn)
	require.NoError(t, err)
	runner, err := NewMigrator(db, DriverSqlite, "")
	require.NoError(t, err)
	defer func() {
		_, _ = runner.Close()
	}()

	require.NoError(t, runner.Down())
	_, _, err = runner.Version()
	assert.True(t, errors.Is(err, migrate.ErrNilVersion))
}

func TestPostgresRequiresDSN(t *testing.T) {
	f := NewConnectionFactory(testr.New(t))
	err := f.Init(context.Background(), provider.NewScope(map[string]string{"driver": "pgx"}))
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))
}

func TestRealmFactoryRequiresConnections(t *testing.T) {
	m := provider.NewStaticManager()
	require.NoError(t, m.RegisterSpi(provider.Spi{Name: model.SpiRealm, ProviderType: model.ProviderTypeRealm}))
	require.NoError(t, m.RegisterFactory(NewRealmFactory()))

	f := provider.NewSessionFactory(m, nil, testr.New(t))
	err := f.Init(context.Background(), nil)
	assert.True(t, oerrors.IsCode(err, oerrors.CodeProviderNotFound))
}

func TestSessionSharesOneTransaction(t *testing.T) {
	f := newSessionFactory(t, map[string]string{"dsn": sqliteDSN(t)})

	err := session.RunInTransaction(context.Background(), f, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		require.NoError(t, err)
		users, err := model.Users(ctx, s)
		require.NoError(t, err)

		realm, err := realms.CreateRealm(ctx, model.Realm{Name: "shared", Attributes: map[string]string{"displayName": "Shared"}})
		require.NoError(t, err)
		_, err = users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "erin"})
		require.NoError(t, err)

		conn, err := connection(ctx, s)
		require.NoError(t, err)
		assert.NotNil(t, conn.tx)

		loaded, err := realms.GetRealm(ctx, realm.ID)
		require.NoError(t, err)
		assert.Equal(t, "Shared", loaded.Attributes["displayName"])
		return nil
	})
	require.NoError(t, err)
}
