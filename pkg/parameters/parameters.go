package parameters

import (
	"sort"

	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

// Parameters is a model parameter set: a unit contributing SPIs and provider
// factories to the whitelist of a test run.
type Parameters interface {
	Name() string
	IsSpiAllowed(spi provider.Spi) bool
	IsFactoryAllowed(factory provider.Factory) bool
}

// Set is an immutable Parameters backed by explicit SPI names and factory
// keys.
type Set struct {
	name      string
	spis      map[string]struct{}
	factories map[provider.FactoryKey]struct{}
}

var _ Parameters = Set{}

func NewSet(name string, spis []string, factories []provider.FactoryKey) Set {
	set := Set{
		name:      name,
		spis:      make(map[string]struct{}, len(spis)),
		factories: make(map[provider.FactoryKey]struct{}, len(factories)),
	}
	for _, spi := range spis {
		set.spis[spi] = struct{}{}
	}
	for _, key := range factories {
		set.factories[key] = struct{}{}
	}
	return set
}

func (s Set) Name() string {
	return s.name
}

func (s Set) IsSpiAllowed(spi provider.Spi) bool {
	_, ok := s.spis[spi.Name]
	return ok
}

func (s Set) IsFactoryAllowed(factory provider.Factory) bool {
	_, ok := s.factories[provider.KeyOf(factory)]
	return ok
}

func (s Set) AllowedSpis() []string {
	result := make([]string, 0, len(s.spis))
	for spi := range s.spis {
		result = append(result, spi)
	}
	sort.Strings(result)
	return result
}

func (s Set) AllowedFactories() []provider.FactoryKey {
	result := make([]provider.FactoryKey, 0, len(s.factories))
	for key := range s.factories {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}

const BaselineName = "parameters.Baseline"

// Baseline is the unit every whitelist starts with: the SPIs and factories
// needed to bootstrap a session factory.
func Baseline() Set {
	return NewSet(BaselineName,
		[]string{
			model.SpiAuthorization,
			model.SpiClient,
			model.SpiCluster,
			model.SpiEventsStore,
			model.SpiExecutors,
			model.SpiGroup,
			model.SpiRealm,
			model.SpiRole,
			model.SpiStoreFactory,
			model.SpiUser,
		},
		[]provider.FactoryKey{
			{Spi: model.SpiAuthorization, ID: "default"},
			{Spi: model.SpiExecutors, ID: "default"},
		},
	)
}
