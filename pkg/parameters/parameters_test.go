package parameters

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapSet() (Parameters, error) {
	return NewSet("parameters.Map",
		[]string{model.SpiRealm, model.SpiUser},
		[]provider.FactoryKey{{Spi: model.SpiRealm, ID: "map"}, {Spi: model.SpiUser, ID: "map"}},
	), nil
}

type keyFactory struct {
	provider.BaseFactory
}

func (keyFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	return nil, nil
}

func factory(spi string, id string) provider.Factory {
	return keyFactory{BaseFactory: provider.BaseFactory{Spi: spi, FactoryID: id}}
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"Map", "org.example.Sql"}, ParseNames(" Map ,org.example.Sql,, "))
	assert.Nil(t, ParseNames(""))
	assert.Nil(t, ParseNames(" , "))
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "parameters.Map", Qualify("Map"))
	assert.Equal(t, "example.Map", Qualify("example.Map"))
	assert.Equal(t, "", Qualify("  "))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Map", mapSet))
	assert.ErrorIs(t, r.Register("parameters.Map", mapSet), ErrDuplicateName)
	assert.ErrorIs(t, r.Register("", mapSet), ErrEmptyName)
	assert.ErrorIs(t, r.Register("X", nil), ErrNilConstructor)

	params, err := r.Resolve("Map")
	require.NoError(t, err)
	assert.Equal(t, "parameters.Map", params.Name())

	_, err = r.Resolve("Missing")
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterNotFound))

	require.NoError(t, r.Register("Broken", func() (Parameters, error) { return nil, errors.New("no") }))
	_, err = r.Resolve("Broken")
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))

	require.NoError(t, r.Register("Nil", func() (Parameters, error) { return nil, nil }))
	_, err = r.Resolve("Nil")
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))

	assert.Equal(t, []string{"parameters.Broken", "parameters.Map", "parameters.Nil"}, r.Names())
}

func TestLoadSkipsUnresolvableNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Map", mapSet))
	require.NoError(t, r.Register("Broken", func() (Parameters, error) { return nil, errors.New("no") }))

	w := Load(testr.New(t), r, []string{"Missing", "Map", "Broken", "com.example.Other"})

	require.Equal(t, 2, w.Len())
	assert.Equal(t, []string{BaselineName, "parameters.Map"}, w.Names())
}

type pointerSet struct {
	Set
}

func TestResolveRecoversConstructorPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Boom", func() (Parameters, error) { panic("ctor failed") }))

	params, err := r.Resolve("Boom")
	assert.Nil(t, params)
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))
	assert.Contains(t, err.Error(), "ctor failed")
}

func TestResolveRejectsTypedNil(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Nilptr", func() (Parameters, error) { return (*pointerSet)(nil), nil }))

	params, err := r.Resolve("Nilptr")
	assert.Nil(t, params)
	assert.True(t, oerrors.IsCode(err, oerrors.CodeParameterInvalid))
}

func TestLoadSurvivesFaultyConstructors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Map", mapSet))
	require.NoError(t, r.Register("Boom", func() (Parameters, error) { panic("ctor failed") }))
	require.NoError(t, r.Register("Nilptr", func() (Parameters, error) { return (*pointerSet)(nil), nil }))

	w := Load(testr.New(t), r, []string{"Boom", "Map", "Nilptr"})

	assert.Equal(t, []string{BaselineName, "parameters.Map"}, w.Names())
	assert.True(t, w.AllowsSpi(provider.Spi{Name: model.SpiRealm}))
	assert.False(t, w.AllowsSpi(provider.Spi{Name: model.SpiConnectionsSql}))
}

func TestWhitelistIsLogicalOr(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Map", mapSet))
	w := Load(testr.New(t), r, []string{"Map"})

	assert.True(t, w.AllowsSpi(provider.Spi{Name: model.SpiRealm}))
	assert.True(t, w.AllowsSpi(provider.Spi{Name: model.SpiCluster}))
	assert.False(t, w.AllowsSpi(provider.Spi{Name: model.SpiConnectionsSql}))

	assert.True(t, w.AllowsFactory(factory(model.SpiRealm, "map")))
	assert.True(t, w.AllowsFactory(factory(model.SpiExecutors, "default")))
	assert.False(t, w.AllowsFactory(factory(model.SpiRealm, "sql")))
	assert.False(t, w.AllowsFactory(nil))
}

func TestBaselineOnly(t *testing.T) {
	w := Load(testr.New(t), NewRegistry(), nil)
	assert.Equal(t, 1, w.Len())

	baseline := Baseline()
	assert.Contains(t, baseline.AllowedSpis(), model.SpiStoreFactory)
	assert.Equal(t, []provider.FactoryKey{
		{Spi: model.SpiAuthorization, ID: "default"},
		{Spi: model.SpiExecutors, ID: "default"},
	}, baseline.AllowedFactories())
}
