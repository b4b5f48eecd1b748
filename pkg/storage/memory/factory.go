// Package memory provides map-backed realm and user providers. Each provider
// works on a private copy of the shared tables while its session transaction
// is active; commit publishes the copy and rollback discards it.
package memory

import (
	"context"

	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/transaction"
)

const ProviderID = "map"

type RealmFactory struct {
	provider.BaseFactory
	realms     *table[model.Realm]
	components *table[model.Component]
}

var _ provider.Factory = (*RealmFactory)(nil)

func NewRealmFactory() *RealmFactory {
	return &RealmFactory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiRealm, FactoryID: ProviderID},
		realms:      newTable[model.Realm](),
		components:  newTable[model.Component](),
	}
}

func (f *RealmFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	p := &RealmProvider{
		realms:     view[model.Realm]{table: f.realms},
		components: view[model.Component]{table: f.components},
	}
	if err := enlist(ctx, s, p.begin, p.commit, p.rollback); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *RealmFactory) Close(ctx context.Context) error {
	f.realms.clear()
	f.components.clear()
	return nil
}

type UserFactory struct {
	provider.BaseFactory
	users *table[model.User]
}

var _ provider.Factory = (*UserFactory)(nil)

func NewUserFactory() *UserFactory {
	return &UserFactory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiUser, FactoryID: ProviderID},
		users:       newTable[model.User](),
	}
}

func (f *UserFactory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	p := &UserProvider{
		users: view[model.User]{table: f.users},
	}
	if err := enlist(ctx, s, p.begin, p.commit, p.rollback); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *UserFactory) Close(ctx context.Context) error {
	f.users.clear()
	return nil
}

// enlist ties a provider to its session transaction. After the transaction
// completed the provider works on the shared tables directly.
func enlist(ctx context.Context, s provider.Session, begin, commit, rollback transaction.Func) error {
	tm := s.TransactionManager()
	if tm.State().Terminal() {
		return nil
	}

	tx := transaction.NewCallback(commit, rollback)
	tx.OnBegin = begin
	return tm.Enlist(ctx, tx)
}
