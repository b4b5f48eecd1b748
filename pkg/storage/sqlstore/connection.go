// Package sqlstore provides realm and user providers backed by database/sql.
// sqlite3 is the default driver; postgres is reached through pgx. The schema
// is embedded and migrated when the connection factory initializes.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/transaction"
)

type Driver string

const (
	DriverSqlite Driver = "sqlite3"
	DriverPgx    Driver = "pgx"
)

const (
	ConnectionFactoryID = "default"
	ProviderID          = "sql"
)

var (
	ErrNilDB          = errors.New("sqlstore: db is nil")
	ErrNotInitialized = oerrors.New(oerrors.CodeNotInitialized, "sqlstore: connection factory not initialized", nil)
)

// ParseDriver maps a configured driver name to a Driver.
func ParseDriver(raw string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sqlite", "sqlite3":
		return DriverSqlite, nil
	case "pgx", "pgx5", "postgres", "postgresql":
		return DriverPgx, nil
	default:
		return "", unsupportedDriver(Driver(raw))
	}
}

func unsupportedDriver(driver Driver) error {
	return oerrors.New(oerrors.CodeParameterInvalid, fmt.Sprintf("sqlstore: unsupported driver %q", driver), nil)
}

func open(driver Driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.CodeStorageUnavailable, fmt.Sprintf("sqlstore: open %s", driver), err)
	}
	if driver == DriverSqlite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// ConnectionFactory owns the database handle shared by every SQL provider.
// Scope keys: driver, dsn, migrate, migrationsTable.
type ConnectionFactory struct {
	provider.BaseFactory
	logger logr.Logger

	driver Driver
	dsn    string
	db     *sql.DB
}

var _ provider.Factory = (*ConnectionFactory)(nil)

func NewConnectionFactory(logger logr.Logger) *ConnectionFactory {
	return &ConnectionFactory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiConnectionsSql, FactoryID: ConnectionFactoryID},
		logger:      logger.WithName("sqlstore"),
	}
}

func (f *ConnectionFactory) Init(ctx context.Context, scope provider.Scope) error {
	driver, err := ParseDriver(scope.Get("driver"))
	if err != nil {
		return err
	}

	dsn := scope.Get("dsn")
	if dsn == "" {
		if driver != DriverSqlite {
			return oerrors.New(oerrors.CodeParameterInvalid, "sqlstore: dsn is required for "+string(driver), nil)
		}
		dsn = "file:modeltest-" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := open(driver, dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return oerrors.Wrap(oerrors.CodeStorageUnavailable, "sqlstore: ping database", err)
	}

	if scope.GetBool("migrate", true) {
		version, err := Migrate(driver, dsn, scope.Get("migrationsTable"))
		if err != nil {
			_ = db.Close()
			return err
		}
		f.logger.V(1).Info("migrated schema", "driver", driver, "version", version)
	}

	f.driver = driver
	f.dsn = dsn
	f.db = db
	return nil
}

func (f *ConnectionFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	if f.db == nil {
		return nil, ErrNotInitialized
	}

	p := &ConnectionProvider{db: f.db, driver: f.driver}
	tm := s.TransactionManager()
	if tm.State().Terminal() {
		return p, nil
	}

	p.session = transaction.NewCallback(p.commit, p.rollback)
	if err := tm.Enlist(ctx, p.session); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *ConnectionFactory) Close(ctx context.Context) error {
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

func (f *ConnectionFactory) Driver() Driver {
	return f.driver
}

func (f *ConnectionFactory) DB() *sql.DB {
	return f.db
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConnectionProvider is the per-session view of the database. The first
// statement issued while the session transaction is active opens a *sql.Tx
// that lives until the session transaction completes.
type ConnectionProvider struct {
	db      *sql.DB
	driver  Driver
	session *transaction.Callback
	tx      *sql.Tx
}

func (p *ConnectionProvider) Driver() Driver {
	return p.driver
}

// Querier returns the session transaction, opening it on first use, or the
// database when the session has no active transaction.
func (p *ConnectionProvider) Querier(ctx context.Context) (querier, error) {
	if p.tx != nil {
		return p.tx, nil
	}
	if p.session == nil || !p.session.IsActive() {
		return p.db, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.CodeStorageUnavailable, "sqlstore: begin transaction", err)
	}
	p.tx = tx
	return tx, nil
}

// WithTx runs fn inside the session transaction, or inside a local
// transaction committed on success when the session has none.
func (p *ConnectionProvider) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	q, err := p.Querier(ctx)
	if err != nil {
		return err
	}
	if tx, ok := q.(*sql.Tx); ok {
		return fn(tx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return oerrors.Wrap(oerrors.CodeStorageUnavailable, "sqlstore: begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (p *ConnectionProvider) commit(context.Context) error {
	if p.tx == nil {
		return nil
	}
	tx := p.tx
	p.tx = nil
	return tx.Commit()
}

func (p *ConnectionProvider) rollback(context.Context) error {
	if p.tx == nil {
		return nil
	}
	tx := p.tx
	p.tx = nil
	return tx.Rollback()
}

func (p *ConnectionProvider) Close() error {
	return nil
}

func connection(ctx context.Context, s provider.Session) (*ConnectionProvider, error) {
	return provider.As[*ConnectionProvider](ctx, s, model.SpiConnectionsSql)
}
