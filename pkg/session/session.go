package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/transaction"
)

// Factory is what a session needs from a session factory.
type Factory interface {
	provider.FactoryLookup
	Logger() logr.Logger
}

// Session is a short lived handle owned by one operation. Providers created
// through it share its transaction manager and are closed with it.
type Session struct {
	factory Factory
	logger  logr.Logger
	tm      *transaction.Manager

	providers map[provider.FactoryKey]provider.Provider
	order     []provider.FactoryKey
	closed    bool
}

var _ provider.Session = (*Session)(nil)

func New(factory Factory) *Session {
	logger := logr.Discard()
	if factory != nil && factory.Logger().GetSink() != nil {
		logger = factory.Logger()
	}

	return &Session{
		factory:   factory,
		logger:    logger,
		tm:        transaction.NewManager(logger.WithName("transaction")),
		providers: map[provider.FactoryKey]provider.Provider{},
	}
}

func (s *Session) Factory() Factory {
	return s.factory
}

func (s *Session) TransactionManager() *transaction.Manager {
	return s.tm
}

// Provider returns the provider of the default factory of spi, creating it on
// first use.
func (s *Session) Provider(ctx context.Context, spi string) (provider.Provider, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	factory := s.factory.ProviderFactory(spi)
	if factory == nil {
		return nil, oerrors.New(oerrors.CodeProviderNotFound, fmt.Sprintf("session: no provider factory for spi %s", spi), nil)
	}
	return s.provide(ctx, factory)
}

func (s *Session) ProviderByID(ctx context.Context, spi string, id string) (provider.Provider, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	factory := s.factory.ProviderFactoryByID(spi, id)
	if factory == nil {
		return nil, oerrors.New(oerrors.CodeProviderNotFound, fmt.Sprintf("session: no provider factory %s/%s", spi, id), nil)
	}
	return s.provide(ctx, factory)
}

func (s *Session) provide(ctx context.Context, factory provider.Factory) (provider.Provider, error) {
	key := provider.KeyOf(factory)
	if p, ok := s.providers[key]; ok {
		return p, nil
	}

	p, err := factory.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("session: create provider %s: %w", key, err)
	}
	s.providers[key] = p
	s.order = append(s.order, key)
	return p, nil
}

// Close rolls back a still active transaction and closes the providers in
// reverse creation order.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.tm.IsActive() {
		s.logger.Info("closing session with active transaction, rolling back")
		if err := s.tm.Rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(s.order) - 1; i >= 0; i-- {
		key := s.order[i]
		if err := s.providers[key].Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: close provider %s: %w", key, err))
		}
	}
	s.providers = nil
	s.order = nil

	return errors.Join(errs...)
}

func (s *Session) requireOpen() error {
	if s == nil {
		return oerrors.ErrNilSession
	}
	if s.closed {
		return oerrors.New(oerrors.CodeTransactionState, "session: closed", nil)
	}
	if s.factory == nil {
		return oerrors.ErrNotInitialized
	}
	return nil
}
