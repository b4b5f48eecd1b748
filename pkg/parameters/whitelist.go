package parameters

import (
	"github.com/go-logr/logr"
	"github.com/porthorian/modeltest/pkg/provider"
)

// Whitelist is the ordered list of parameter sets of a test run, baseline
// first. It is not modified after Load.
type Whitelist struct {
	units []Parameters
}

func NewWhitelist(units ...Parameters) *Whitelist {
	w := &Whitelist{}
	for _, unit := range units {
		if unit != nil {
			w.units = append(w.units, unit)
		}
	}
	return w
}

// Load resolves names against registry and appends them to the baseline.
// Names that cannot be resolved are logged and skipped.
func Load(logger logr.Logger, registry *Registry, names []string) *Whitelist {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	if registry == nil {
		registry = DefaultRegistry
	}

	units := []Parameters{Baseline()}
	for _, name := range names {
		params, err := registry.Resolve(name)
		if err != nil {
			logger.Error(err, "skipping model parameters", "name", name)
			continue
		}
		logger.V(1).Info("registered model parameters", "name", params.Name())
		units = append(units, params)
	}

	return NewWhitelist(units...)
}

func (w *Whitelist) AllowsSpi(spi provider.Spi) bool {
	if w == nil {
		return false
	}
	for _, unit := range w.units {
		if unit.IsSpiAllowed(spi) {
			return true
		}
	}
	return false
}

func (w *Whitelist) AllowsFactory(factory provider.Factory) bool {
	if w == nil || factory == nil {
		return false
	}
	for _, unit := range w.units {
		if unit.IsFactoryAllowed(factory) {
			return true
		}
	}
	return false
}

func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.units)
}

func (w *Whitelist) Names() []string {
	if w == nil {
		return nil
	}
	names := make([]string, 0, len(w.units))
	for _, unit := range w.units {
		names = append(names, unit.Name())
	}
	return names
}
