// Package catalog wires the built-in SPIs, provider factories and model
// parameter sets together.
package catalog

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/porthorian/modeltest/pkg/authz"
	"github.com/porthorian/modeltest/pkg/executors"
	"github.com/porthorian/modeltest/pkg/federation"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/storage/memory"
	"github.com/porthorian/modeltest/pkg/storage/sqlstore"
)

const (
	MapParameters        = "parameters.Map"
	SqlParameters        = "parameters.Sql"
	FederationParameters = "parameters.Federation"
)

// NewManager returns a provider manager holding every built-in SPI and a
// fresh instance of every built-in factory.
func NewManager(logger logr.Logger) (*provider.StaticManager, error) {
	m := provider.NewStaticManager()
	for _, spi := range model.Spis() {
		if err := m.RegisterSpi(spi); err != nil {
			return nil, err
		}
	}

	factories := []provider.Factory{
		authz.NewFactory(),
		executors.NewFactory(),
		memory.NewRealmFactory(),
		memory.NewUserFactory(),
		sqlstore.NewConnectionFactory(logger),
		sqlstore.NewRealmFactory(),
		sqlstore.NewUserFactory(),
		federation.NewFactory(logger),
	}
	for _, factory := range factories {
		if err := m.RegisterFactory(factory); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func Map() parameters.Set {
	return parameters.NewSet(MapParameters,
		[]string{model.SpiRealm, model.SpiUser},
		[]provider.FactoryKey{
			{Spi: model.SpiRealm, ID: memory.ProviderID},
			{Spi: model.SpiUser, ID: memory.ProviderID},
		},
	)
}

func Sql() parameters.Set {
	return parameters.NewSet(SqlParameters,
		[]string{model.SpiConnectionsSql, model.SpiRealm, model.SpiUser},
		[]provider.FactoryKey{
			{Spi: model.SpiConnectionsSql, ID: sqlstore.ConnectionFactoryID},
			{Spi: model.SpiRealm, ID: sqlstore.ProviderID},
			{Spi: model.SpiUser, ID: sqlstore.ProviderID},
		},
	)
}

func Federation() parameters.Set {
	return parameters.NewSet(FederationParameters,
		[]string{model.SpiUserStorage},
		[]provider.FactoryKey{
			{Spi: model.SpiUserStorage, ID: federation.ProviderID},
		},
	)
}

// RegisterParameters adds the built-in parameter sets to registry.
func RegisterParameters(registry *parameters.Registry) error {
	builtins := map[string]func() parameters.Set{
		MapParameters:        Map,
		SqlParameters:        Sql,
		FederationParameters: Federation,
	}
	for _, name := range []string{MapParameters, SqlParameters, FederationParameters} {
		build := builtins[name]
		err := registry.Register(name, func() (parameters.Parameters, error) {
			return build(), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultsOnce sync.Once
	defaultsErr  error
)

// RegisterDefaults populates parameters.DefaultRegistry once per process.
func RegisterDefaults() error {
	defaultsOnce.Do(func() {
		defaultsErr = RegisterParameters(parameters.DefaultRegistry)
	})
	return defaultsErr
}
