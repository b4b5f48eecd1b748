package filter

import (
	"context"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProvider struct{}

func (nopProvider) Close() error { return nil }

type nopFactory struct {
	provider.BaseFactory
	inits int
}

func (f *nopFactory) Init(ctx context.Context, scope provider.Scope) error {
	f.inits++
	return nil
}

func (f *nopFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	return nopProvider{}, nil
}

func nop(spi string, id string) *nopFactory {
	return &nopFactory{BaseFactory: provider.BaseFactory{Spi: spi, FactoryID: id}}
}

func newFiltered(t *testing.T, units ...parameters.Parameters) (*SessionFactory, map[string]*nopFactory) {
	t.Helper()

	factories := map[string]*nopFactory{
		"realm/map":            nop(model.SpiRealm, "map"),
		"realm/sql":            nop(model.SpiRealm, "sql"),
		"executors/default":    nop(model.SpiExecutors, "default"),
		"userStorage/static":   nop(model.SpiUserStorage, "static"),
		"connectionsSql/local": nop(model.SpiConnectionsSql, "local"),
	}

	m := provider.NewStaticManager()
	for _, spi := range model.Spis() {
		require.NoError(t, m.RegisterSpi(spi))
	}
	for _, f := range factories {
		require.NoError(t, m.RegisterFactory(f))
	}

	whitelist := parameters.NewWhitelist(append([]parameters.Parameters{parameters.Baseline()}, units...)...)
	f := New(provider.NewSessionFactory(m, nil, testr.New(t)), whitelist)
	require.NoError(t, f.Init(context.Background()))
	t.Cleanup(func() { _ = f.Close(context.Background()) })
	return f, factories
}

func TestBaselineHidesUnlistedFactories(t *testing.T) {
	f, factories := newFiltered(t)

	assert.Nil(t, f.ProviderFactory(model.SpiRealm))
	assert.Same(t, factories["executors/default"], f.ProviderFactory(model.SpiExecutors))
	assert.Nil(t, f.ProviderFactory(model.SpiUserStorage))
	assert.Empty(t, f.ProviderFactories(model.ProviderTypeUserStorage))
	assert.Zero(t, factories["realm/map"].inits)
}

func TestAllowedSpiAndFactory(t *testing.T) {
	mapParams := parameters.NewSet("parameters.Map", nil, []provider.FactoryKey{{Spi: model.SpiRealm, ID: "map"}})
	f, factories := newFiltered(t, mapParams)

	assert.Same(t, factories["realm/map"], f.ProviderFactory(model.SpiRealm))
	assert.Nil(t, f.ProviderFactoryByID(model.SpiRealm, "sql"))
	assert.Zero(t, factories["realm/sql"].inits)
}

func TestSpiNotAllowedEvenWhenFactoryAllowed(t *testing.T) {
	federation := parameters.NewSet("parameters.Federation", nil, []provider.FactoryKey{
		{Spi: model.SpiUserStorage, ID: "static"},
		{Spi: model.SpiConnectionsSql, ID: "local"},
	})
	f, factories := newFiltered(t, federation)

	assert.Nil(t, f.ProviderFactory(model.SpiUserStorage))
	assert.Nil(t, f.ProviderFactory(model.SpiConnectionsSql))
	assert.Zero(t, factories["userStorage/static"].inits)

	for _, spi := range f.Spis() {
		assert.NotEqual(t, model.SpiUserStorage, spi.Name)
		assert.NotEqual(t, model.SpiConnectionsSql, spi.Name)
	}
}

func TestProviderFactoriesByType(t *testing.T) {
	federation := parameters.NewSet("parameters.Federation",
		[]string{model.SpiUserStorage},
		[]provider.FactoryKey{{Spi: model.SpiUserStorage, ID: "static"}},
	)
	f, factories := newFiltered(t, federation)

	got := f.ProviderFactories(model.ProviderTypeUserStorage)
	require.Len(t, got, 1)
	assert.Same(t, factories["userStorage/static"], got[0])
}

func TestInitOnce(t *testing.T) {
	f, factories := newFiltered(t)
	require.NoError(t, f.Init(context.Background()))
	assert.Equal(t, 1, factories["executors/default"].inits)
}

func TestUninitializedLookups(t *testing.T) {
	f := New(nil, nil)
	assert.Nil(t, f.ProviderFactory(model.SpiRealm))
	assert.Error(t, f.Init(context.Background()))
	assert.Equal(t, 1, f.Whitelist().Len())
}
