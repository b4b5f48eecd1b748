// Package modeltest is a harness for integration tests against a provider
// based model. A whitelist of model parameter sets decides which SPIs and
// provider factories one shared session factory exposes; helpers bracket test
// logic in transactions and skip tests whose providers are missing.
//
// A test binary initializes the harness once, usually from TestMain:
//
//	func TestMain(m *testing.M) {
//		config, err := modeltest.ConfigFromEnv()
//		...
//		harness, err := modeltest.Init(context.Background(), config)
//		...
//		code := m.Run()
//		_ = harness.Close()
//		os.Exit(code)
//	}
package modeltest

import (
	"context"
	"io"
	"sync"

	"github.com/go-logr/logr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/filter"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/session"
)

// Harness owns the filtered session factory shared by the tests of a
// process. It is read-only once New returns.
type Harness struct {
	factory       *filter.SessionFactory
	logger        logr.Logger
	closeResource func() error
}

// New builds and initializes a harness. Parameter names that cannot be
// resolved are logged and ignored.
func New(ctx context.Context, config Config) (*Harness, error) {
	resolved, err := config.initialize()
	if err != nil {
		return nil, err
	}
	logger := resolved.Logger.WithName("modeltest")

	whitelist := parameters.Load(logger, resolved.Registry, resolved.Parameters)
	base := provider.NewSessionFactory(resolved.Manager, resolved.Spi, logger)
	factory := filter.New(base, whitelist)
	if err := factory.Init(ctx); err != nil {
		return nil, oerrors.Wrap(oerrors.CodeNotInitialized, "failed to initialize session factory", err)
	}

	closeManager := noopCloser
	if closer, ok := resolved.Manager.(io.Closer); ok {
		closeManager = closer.Close
	}

	logger.Info("initialized session factory", "parameters", whitelist.Names())
	return &Harness{
		factory: factory,
		logger:  logger,
		closeResource: joinClosers(closeManager, func() error {
			return factory.Close(context.Background())
		}),
	}, nil
}

var shared struct {
	once    sync.Once
	harness *Harness
	err     error
}

// Init initializes the process-wide harness. Only the first call builds it;
// every call returns the same harness and error.
func Init(ctx context.Context, config Config) (*Harness, error) {
	shared.once.Do(func() {
		shared.harness, shared.err = New(ctx, config)
	})
	return shared.harness, shared.err
}

// Shared returns the harness built by Init.
func Shared() (*Harness, error) {
	if shared.harness == nil {
		if shared.err != nil {
			return nil, shared.err
		}
		return nil, oerrors.ErrNotInitialized
	}
	return shared.harness, nil
}

func (h *Harness) Factory() *filter.SessionFactory {
	return h.factory
}

func (h *Harness) Logger() logr.Logger {
	return h.logger
}

func (h *Harness) Whitelist() *parameters.Whitelist {
	return h.factory.Whitelist()
}

// NewSession opens a session the caller must close.
func (h *Harness) NewSession() *session.Session {
	return session.New(h.factory)
}

func (h *Harness) Close() error {
	if h == nil || h.closeResource == nil {
		return nil
	}

	err := h.closeResource()
	h.closeResource = nil
	if err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, "failed to close harness resources", err)
	}
	return nil
}

// CheckValidParameters skips the test unless at least one parameter set was
// added to the baseline.
func (h *Harness) CheckValidParameters(t SkipT) bool {
	t.Helper()
	if h.Whitelist().Len() < 2 {
		t.Skipf("model parameters must be set")
		return false
	}
	return true
}

// RequireProviders skips the test naming the first SPI without a visible
// provider factory.
func (h *Harness) RequireProviders(t SkipT, spis ...string) bool {
	t.Helper()
	for _, spi := range spis {
		if h.factory.ProviderFactory(spi) == nil {
			t.Skipf("Provider must exist: %s", spi)
			return false
		}
	}
	return true
}

// RunJobInTransaction runs job in a new session and commits unless job fails.
func (h *Harness) RunJobInTransaction(ctx context.Context, job Job) error {
	return session.RunInTransaction(ctx, h.factory, job)
}
