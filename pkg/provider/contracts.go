package provider

import (
	"context"
	"fmt"

	"github.com/porthorian/modeltest/pkg/transaction"
)

// ProviderType names the contract implemented by the providers of an SPI.
// Several SPIs may share one provider type.
type ProviderType string

type Spi struct {
	Name         string
	ProviderType ProviderType
	Internal     bool
}

func (s Spi) String() string {
	return s.Name
}

type FactoryKey struct {
	Spi string
	ID  string
}

func (k FactoryKey) String() string {
	return k.Spi + "/" + k.ID
}

func KeyOf(f Factory) FactoryKey {
	if f == nil {
		return FactoryKey{}
	}
	return FactoryKey{Spi: f.SpiName(), ID: f.ID()}
}

type Provider interface {
	Close() error
}

// Session is the view of a session handed to factories when they create
// providers.
type Session interface {
	TransactionManager() *transaction.Manager
	Provider(ctx context.Context, spi string) (Provider, error)
}

type FactoryLookup interface {
	ProviderFactory(spi string) Factory
	ProviderFactoryByID(spi string, id string) Factory
	ProviderFactories(providerType ProviderType) []Factory
}

type Factory interface {
	SpiName() string
	ID() string
	Init(ctx context.Context, scope Scope) error
	PostInit(ctx context.Context, factories FactoryLookup) error
	Create(ctx context.Context, session Session) (Provider, error)
	Close(ctx context.Context) error
}

// OrderedFactory breaks ties when an SPI has several factories and no
// configured default. Higher order wins.
type OrderedFactory interface {
	Order() int
}

type EnvironmentDependentFactory interface {
	IsSupported() bool
}

// BaseFactory carries the identity of a factory and no-op lifecycle hooks.
type BaseFactory struct {
	Spi       string
	FactoryID string
}

func (b BaseFactory) SpiName() string {
	return b.Spi
}

func (b BaseFactory) ID() string {
	return b.FactoryID
}

func (b BaseFactory) Init(ctx context.Context, scope Scope) error {
	return nil
}

func (b BaseFactory) PostInit(ctx context.Context, factories FactoryLookup) error {
	return nil
}

func (b BaseFactory) Close(ctx context.Context) error {
	return nil
}

// As returns the provider of spi from session converted to T.
func As[T any](ctx context.Context, session Session, spi string) (T, error) {
	var zero T
	if session == nil {
		return zero, fmt.Errorf("provider: session is nil")
	}

	p, err := session.Provider(ctx, spi)
	if err != nil {
		return zero, err
	}

	typed, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("provider: %s provider %T does not implement %T", spi, p, zero)
	}
	return typed, nil
}
