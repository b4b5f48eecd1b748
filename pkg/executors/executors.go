// Package executors is the default executors provider. It runs task groups
// with a bounded number of goroutines; the first failure cancels the rest.
package executors

import (
	"context"
	"runtime"

	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"golang.org/x/sync/errgroup"
)

const ProviderID = "default"

type Task func(ctx context.Context) error

type Factory struct {
	provider.BaseFactory
	maxThreads int
}

var _ provider.Factory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiExecutors, FactoryID: ProviderID},
		maxThreads:  runtime.GOMAXPROCS(0),
	}
}

// Init reads maxThreads; zero or less keeps the GOMAXPROCS default.
func (f *Factory) Init(ctx context.Context, scope provider.Scope) error {
	if threads := scope.GetInt("maxThreads", 0); threads > 0 {
		f.maxThreads = threads
	}
	return nil
}

func (f *Factory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	return &Provider{maxThreads: f.maxThreads}, nil
}

type Provider struct {
	maxThreads int
}

// Run executes tasks concurrently and returns the first error.
func (p *Provider) Run(ctx context.Context, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxThreads)

	for _, task := range tasks {
		if task == nil {
			continue
		}
		g.Go(func() error {
			return task(ctx)
		})
	}
	return g.Wait()
}

func (p *Provider) Close() error {
	return nil
}

// FromSession returns the session's executors provider.
func FromSession(ctx context.Context, s provider.Session) (*Provider, error) {
	return provider.As[*Provider](ctx, s, model.SpiExecutors)
}
