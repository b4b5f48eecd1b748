// Package filter restricts a generic session factory to the SPIs and
// provider factories approved by a parameters whitelist.
package filter

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
)

// SessionFactory composes a provider.SessionFactory with a whitelist. Once
// initialized, no lookup returns a factory whose SPI or key the whitelist
// rejects, whatever the provider manager discovers.
type SessionFactory struct {
	base      *provider.SessionFactory
	whitelist *parameters.Whitelist
	logger    logr.Logger

	initOnce sync.Once
	initErr  error
}

var _ provider.Hooks = (*SessionFactory)(nil)
var _ provider.FactoryLookup = (*SessionFactory)(nil)

func New(base *provider.SessionFactory, whitelist *parameters.Whitelist) *SessionFactory {
	logger := logr.Discard()
	if base != nil {
		logger = base.Logger()
	}
	if whitelist == nil {
		whitelist = parameters.NewWhitelist(parameters.Baseline())
	}

	return &SessionFactory{
		base:      base,
		whitelist: whitelist,
		logger:    logger,
	}
}

// Init initializes the wrapped factory through this filter. Only the first
// call does any work; later calls return its result.
func (f *SessionFactory) Init(ctx context.Context) error {
	f.initOnce.Do(func() {
		if f.base == nil {
			f.initErr = oerrors.ErrNotInitialized
			return
		}
		f.initErr = f.base.Init(ctx, f)
	})
	return f.initErr
}

// IsEnabled requires both the generic decision and the whitelist.
func (f *SessionFactory) IsEnabled(factory provider.Factory, scope provider.Scope) bool {
	if !f.base.DefaultIsEnabled(factory, scope) {
		return false
	}
	if !f.whitelist.AllowsFactory(factory) {
		f.logger.V(1).Info("provider factory not allowed by model parameters", "factory", provider.KeyOf(factory).String())
		return false
	}
	return true
}

// LoadFactories drops the SPIs the whitelist rejects, then loads the rest.
func (f *SessionFactory) LoadFactories(ctx context.Context, manager provider.Manager) (map[string]map[string]provider.Factory, error) {
	f.base.RemoveSpis(func(spi provider.Spi) bool {
		return !f.whitelist.AllowsSpi(spi)
	})
	return f.base.DefaultLoadFactories(ctx, manager, f.IsEnabled)
}

func (f *SessionFactory) Whitelist() *parameters.Whitelist {
	return f.whitelist
}

func (f *SessionFactory) Logger() logr.Logger {
	return f.logger
}

func (f *SessionFactory) Spis() []provider.Spi {
	if f.base == nil {
		return nil
	}
	return f.base.Spis()
}

func (f *SessionFactory) ProviderFactory(spi string) provider.Factory {
	if f.base == nil {
		return nil
	}
	return f.base.ProviderFactory(spi)
}

func (f *SessionFactory) ProviderFactoryByID(spi string, id string) provider.Factory {
	if f.base == nil {
		return nil
	}
	return f.base.ProviderFactoryByID(spi, id)
}

func (f *SessionFactory) ProviderFactories(providerType provider.ProviderType) []provider.Factory {
	if f.base == nil {
		return nil
	}
	return f.base.ProviderFactories(providerType)
}

func (f *SessionFactory) ProviderFactoriesBySpi(spi string) []provider.Factory {
	if f.base == nil {
		return nil
	}
	return f.base.ProviderFactoriesBySpi(spi)
}

func (f *SessionFactory) Close(ctx context.Context) error {
	if f == nil || f.base == nil {
		return nil
	}
	return f.base.Close(ctx)
}
