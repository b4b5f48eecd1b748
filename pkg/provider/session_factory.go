package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
)

const defaultFactoryID = "default"

// Hooks are the two decisions of SessionFactory.Init that a wrapper may take
// over. A nil Hooks uses the SessionFactory defaults.
type Hooks interface {
	IsEnabled(factory Factory, scope Scope) bool
	LoadFactories(ctx context.Context, manager Manager) (map[string]map[string]Factory, error)
}

// SessionFactory loads every factory the manager discovers for its working
// set of SPIs and serves lookups once initialized.
type SessionFactory struct {
	manager Manager
	config  Config
	logger  logr.Logger

	spis        []Spi
	factories   map[string]map[string]Factory
	defaults    map[string]string
	initialized bool
}

var _ FactoryLookup = (*SessionFactory)(nil)

var (
	ErrAlreadyInitialized = oerrors.New(oerrors.CodeProviderConflict, "session factory: already initialized", nil)
	ErrNilManager         = errors.New("session factory: provider manager is nil")
)

func NewSessionFactory(manager Manager, config Config, logger logr.Logger) *SessionFactory {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	// RemoveSpis filters in place, so the manager's slice must not be shared.
	var spis []Spi
	if manager != nil {
		spis = append([]Spi(nil), manager.LoadSpis()...)
	}

	return &SessionFactory{
		manager:   manager,
		config:    config,
		logger:    logger,
		spis:      spis,
		factories: map[string]map[string]Factory{},
		defaults:  map[string]string{},
	}
}

type defaultHooks struct {
	f *SessionFactory
}

func (h defaultHooks) IsEnabled(factory Factory, scope Scope) bool {
	return h.f.DefaultIsEnabled(factory, scope)
}

func (h defaultHooks) LoadFactories(ctx context.Context, manager Manager) (map[string]map[string]Factory, error) {
	return h.f.DefaultLoadFactories(ctx, manager, h.f.DefaultIsEnabled)
}

func (f *SessionFactory) Init(ctx context.Context, hooks Hooks) error {
	if f.initialized {
		return ErrAlreadyInitialized
	}
	if f.manager == nil {
		return ErrNilManager
	}
	if hooks == nil {
		hooks = defaultHooks{f: f}
	}

	loaded, err := hooks.LoadFactories(ctx, f.manager)
	if err != nil {
		return err
	}
	f.factories = loaded

	defaults, err := f.resolveDefaults()
	if err != nil {
		_ = f.closeFactories(ctx)
		return err
	}
	f.defaults = defaults
	f.initialized = true

	for _, factory := range f.allFactories() {
		if err := factory.PostInit(ctx, f); err != nil {
			_ = f.Close(ctx)
			return fmt.Errorf("session factory: post init %s: %w", KeyOf(factory), err)
		}
	}

	f.logger.V(1).Info("initialized session factory", "spis", len(f.spis), "factories", len(f.allFactories()))
	return nil
}

// DefaultIsEnabled enables a factory unless its scope sets enabled=false or
// it reports an unsupported environment.
func (f *SessionFactory) DefaultIsEnabled(factory Factory, scope Scope) bool {
	if !scope.GetBool("enabled", true) {
		return false
	}
	if dependent, ok := factory.(EnvironmentDependentFactory); ok {
		return dependent.IsSupported()
	}
	return true
}

// DefaultLoadFactories initializes the enabled factories of every SPI in the
// working set. On failure the factories initialized so far are closed.
func (f *SessionFactory) DefaultLoadFactories(ctx context.Context, manager Manager, isEnabled func(Factory, Scope) bool) (map[string]map[string]Factory, error) {
	if manager == nil {
		return nil, ErrNilManager
	}
	if isEnabled == nil {
		isEnabled = f.DefaultIsEnabled
	}

	loaded := map[string]map[string]Factory{}
	var initialized []Factory

	for _, spi := range f.spis {
		for _, factory := range manager.LoadFactories(spi) {
			if factory == nil {
				continue
			}

			scope := f.config.Scope(spi.Name, factory.ID())
			if !isEnabled(factory, scope) {
				f.logger.V(1).Info("provider factory disabled", "spi", spi.Name, "factory", factory.ID())
				continue
			}

			if err := factory.Init(ctx, scope); err != nil {
				closeAll(ctx, initialized)
				return nil, fmt.Errorf("session factory: init %s: %w", KeyOf(factory), err)
			}
			initialized = append(initialized, factory)

			if loaded[spi.Name] == nil {
				loaded[spi.Name] = map[string]Factory{}
			}
			loaded[spi.Name][factory.ID()] = factory
		}
	}

	return loaded, nil
}

// RemoveSpis drops every SPI matching remove from the working set. It has no
// effect once the factory is initialized.
func (f *SessionFactory) RemoveSpis(remove func(Spi) bool) int {
	if f.initialized || remove == nil {
		return 0
	}

	kept := f.spis[:0]
	removed := 0
	for _, spi := range f.spis {
		if remove(spi) {
			f.logger.V(1).Info("removed spi from session factory", "spi", spi.Name)
			removed++
			continue
		}
		kept = append(kept, spi)
	}
	f.spis = kept
	return removed
}

func (f *SessionFactory) Initialized() bool {
	return f.initialized
}

func (f *SessionFactory) Config() Config {
	return f.config
}

func (f *SessionFactory) Logger() logr.Logger {
	return f.logger
}

func (f *SessionFactory) Spis() []Spi {
	return append([]Spi(nil), f.spis...)
}

func (f *SessionFactory) Spi(name string) (Spi, bool) {
	for _, spi := range f.spis {
		if spi.Name == name {
			return spi, true
		}
	}
	return Spi{}, false
}

// ProviderFactory returns the default factory of spi, or nil.
func (f *SessionFactory) ProviderFactory(spi string) Factory {
	if !f.initialized {
		return nil
	}
	id, ok := f.defaults[spi]
	if !ok {
		return nil
	}
	return f.factories[spi][id]
}

func (f *SessionFactory) ProviderFactoryByID(spi string, id string) Factory {
	if !f.initialized {
		return nil
	}
	return f.factories[spi][id]
}

// ProviderFactories returns the factories of every SPI whose providers
// implement providerType, ordered by SPI then id.
func (f *SessionFactory) ProviderFactories(providerType ProviderType) []Factory {
	if !f.initialized {
		return nil
	}

	var result []Factory
	for _, spi := range f.spis {
		if spi.ProviderType != providerType {
			continue
		}
		result = append(result, sortedFactories(f.factories[spi.Name])...)
	}
	return result
}

// ProviderFactoriesBySpi returns every loaded factory of spi ordered by id.
func (f *SessionFactory) ProviderFactoriesBySpi(spi string) []Factory {
	if !f.initialized {
		return nil
	}
	return sortedFactories(f.factories[spi])
}

func (f *SessionFactory) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	err := f.closeFactories(ctx)
	f.factories = map[string]map[string]Factory{}
	f.defaults = map[string]string{}
	f.initialized = false
	return err
}

func (f *SessionFactory) closeFactories(ctx context.Context) error {
	factories := f.allFactories()
	var errs []error
	for i := len(factories) - 1; i >= 0; i-- {
		factory := factories[i]
		if err := factory.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", KeyOf(factory), err))
		}
	}
	return errors.Join(errs...)
}

func (f *SessionFactory) resolveDefaults() (map[string]string, error) {
	defaults := map[string]string{}
	for spi, byID := range f.factories {
		if len(byID) == 0 {
			continue
		}

		if configured := f.config.DefaultProvider(spi); configured != "" {
			if _, ok := byID[configured]; !ok {
				return nil, oerrors.New(oerrors.CodeProviderNotFound, fmt.Sprintf("session factory: configured default provider %s/%s not found", spi, configured), nil)
			}
			defaults[spi] = configured
			continue
		}

		if _, ok := byID[defaultFactoryID]; ok && len(byID) > 1 {
			defaults[spi] = defaultFactoryID
			continue
		}

		candidates := sortedFactories(byID)
		sort.SliceStable(candidates, func(i, j int) bool {
			return orderOf(candidates[i]) > orderOf(candidates[j])
		})
		defaults[spi] = candidates[0].ID()
	}
	return defaults, nil
}

// allFactories lists factories in SPI bootstrap order.
func (f *SessionFactory) allFactories() []Factory {
	seen := map[string]bool{}
	var result []Factory
	for _, spi := range f.spis {
		seen[spi.Name] = true
		result = append(result, sortedFactories(f.factories[spi.Name])...)
	}

	var rest []string
	for spi := range f.factories {
		if !seen[spi] {
			rest = append(rest, spi)
		}
	}
	sort.Strings(rest)
	for _, spi := range rest {
		result = append(result, sortedFactories(f.factories[spi])...)
	}
	return result
}

func sortedFactories(byID map[string]Factory) []Factory {
	result := make([]Factory, 0, len(byID))
	for _, factory := range byID {
		result = append(result, factory)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

func orderOf(factory Factory) int {
	if ordered, ok := factory.(OrderedFactory); ok {
		return ordered.Order()
	}
	return 0
}

func closeAll(ctx context.Context, factories []Factory) {
	for i := len(factories) - 1; i >= 0; i-- {
		_ = factories[i].Close(ctx)
	}
}
