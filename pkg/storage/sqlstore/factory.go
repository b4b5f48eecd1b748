package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

// RealmFactory serves realm providers over the default connectionsSql
// factory, which must be enabled alongside it.
type RealmFactory struct {
	provider.BaseFactory
	stmts    realmStatements
	prepared []*sql.Stmt
}

var _ provider.Factory = (*RealmFactory)(nil)

func NewRealmFactory() *RealmFactory {
	return &RealmFactory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiRealm, FactoryID: ProviderID},
	}
}

func (f *RealmFactory) PostInit(ctx context.Context, factories provider.FactoryLookup) error {
	db, err := lookupDB(factories)
	if err != nil {
		return err
	}
	f.prepared, err = prepareStatements(ctx, db, &f.stmts, realmStatementSpecs)
	return err
}

func (f *RealmFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	if f.prepared == nil {
		return nil, ErrNotInitialized
	}
	conn, err := connection(ctx, s)
	if err != nil {
		return nil, err
	}
	return &RealmProvider{conn: conn, stmts: &f.stmts}, nil
}

func (f *RealmFactory) Close(ctx context.Context) error {
	err := closeStatements(f.prepared...)
	f.prepared = nil
	return err
}

type UserFactory struct {
	provider.BaseFactory
	stmts    userStatements
	prepared []*sql.Stmt
}

var _ provider.Factory = (*UserFactory)(nil)

func NewUserFactory() *UserFactory {
	return &UserFactory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiUser, FactoryID: ProviderID},
	}
}

func (f *UserFactory) PostInit(ctx context.Context, factories provider.FactoryLookup) error {
	db, err := lookupDB(factories)
	if err != nil {
		return err
	}
	f.prepared, err = prepareStatements(ctx, db, &f.stmts, userStatementSpecs)
	return err
}

func (f *UserFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	if f.prepared == nil {
		return nil, ErrNotInitialized
	}
	conn, err := connection(ctx, s)
	if err != nil {
		return nil, err
	}
	return &UserProvider{conn: conn, stmts: &f.stmts}, nil
}

func (f *UserFactory) Close(ctx context.Context) error {
	err := closeStatements(f.prepared...)
	f.prepared = nil
	return err
}

func lookupDB(factories provider.FactoryLookup) (*sql.DB, error) {
	factory := factories.ProviderFactory(model.SpiConnectionsSql)
	connections, ok := factory.(*ConnectionFactory)
	if !ok || connections.DB() == nil {
		return nil, oerrors.New(
			oerrors.CodeProviderNotFound,
			fmt.Sprintf("sqlstore: %s requires an initialized %s/%s factory", ProviderID, model.SpiConnectionsSql, ConnectionFactoryID),
			nil,
		)
	}
	return connections.DB(), nil
}
