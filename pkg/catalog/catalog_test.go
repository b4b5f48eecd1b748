package catalog

import (
	"context"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/porthorian/modeltest/pkg/filter"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFiltered(t *testing.T, names ...string) *filter.SessionFactory {
	t.Helper()

	registry := parameters.NewRegistry()
	require.NoError(t, RegisterParameters(registry))

	m, err := NewManager(testr.New(t))
	require.NoError(t, err)

	whitelist := parameters.Load(testr.New(t), registry, names)
	f := filter.New(provider.NewSessionFactory(m, nil, testr.New(t)), whitelist)
	require.NoError(t, f.Init(context.Background()))
	t.Cleanup(func() {
		_ = f.Close(context.Background())
	})
	return f
}

func TestRegisterParameters(t *testing.T) {
	registry := parameters.NewRegistry()
	require.NoError(t, RegisterParameters(registry))
	assert.Equal(t, []string{FederationParameters, MapParameters, SqlParameters}, registry.Names())

	assert.Error(t, RegisterParameters(registry))
	require.NoError(t, RegisterDefaults())
	require.NoError(t, RegisterDefaults())
}

func TestBaselineOnly(t *testing.T) {
	f := newFiltered(t)

	assert.NotNil(t, f.ProviderFactory(model.SpiAuthorization))
	assert.NotNil(t, f.ProviderFactory(model.SpiExecutors))
	assert.Nil(t, f.ProviderFactory(model.SpiRealm))
	assert.Nil(t, f.ProviderFactory(model.SpiUserStorage))
	assert.Nil(t, f.ProviderFactory(model.SpiConnectionsSql))
}

func TestMapAndFederation(t *testing.T) {
	f := newFiltered(t, "Map", "Federation")

	realm := f.ProviderFactory(model.SpiRealm)
	require.NotNil(t, realm)
	assert.Equal(t, "map", realm.ID())
	assert.Nil(t, f.ProviderFactoryByID(model.SpiRealm, "sql"))
	assert.Len(t, f.ProviderFactories(model.ProviderTypeUserStorage), 1)
}

func TestSql(t *testing.T) {
	f := newFiltered(t, "Sql")

	realm := f.ProviderFactory(model.SpiRealm)
	require.NotNil(t, realm)
	assert.Equal(t, "sql", realm.ID())
	assert.NotNil(t, f.ProviderFactory(model.SpiConnectionsSql))
	assert.Nil(t, f.ProviderFactoryByID(model.SpiRealm, "map"))
}
