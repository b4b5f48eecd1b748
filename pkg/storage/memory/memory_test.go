package memory

import (
	"context"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/porthorian/modeltest/pkg/storage/testsuite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFactory(t *testing.T) *provider.SessionFactory {
	t.Helper()

	m := provider.NewStaticManager()
	for _, spi := range model.Spis() {
		require.NoError(t, m.RegisterSpi(spi))
	}
	require.NoError(t, m.RegisterFactory(NewRealmFactory()))
	require.NoError(t, m.RegisterFactory(NewUserFactory()))

	f := provider.NewSessionFactory(m, nil, testr.New(t))
	require.NoError(t, f.Init(context.Background(), nil))
	t.Cleanup(func() {
		_ = f.Close(context.Background())
	})
	return f
}

func TestConformance(t *testing.T) {
	testsuite.RunAll(t, newSessionFactory(t))
}

func TestUncommittedWritesAreIsolated(t *testing.T) {
	f := newSessionFactory(t)
	ctx := context.Background()

	writer := session.New(f)
	require.NoError(t, writer.TransactionManager().Begin(ctx))
	realms, err := model.Realms(ctx, writer)
	require.NoError(t, err)
	_, err = realms.CreateRealm(ctx, model.Realm{Name: "pending"})
	require.NoError(t, err)

	reader := session.New(f)
	require.NoError(t, reader.TransactionManager().Begin(ctx))
	other, err := model.Realms(ctx, reader)
	require.NoError(t, err)
	_, err = other.GetRealmByName(ctx, "pending")
	assert.ErrorIs(t, err, model.ErrRealmNotFound)
	require.NoError(t, reader.Close(ctx))

	require.NoError(t, writer.TransactionManager().Commit(ctx))
	require.NoError(t, writer.Close(ctx))

	err = session.RunInTransaction(ctx, f, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		require.NoError(t, err)
		_, err = realms.GetRealmByName(ctx, "pending")
		return err
	})
	require.NoError(t, err)
}

func TestProviderWithoutTransactionWritesThrough(t *testing.T) {
	f := newSessionFactory(t)
	ctx := context.Background()

	s := session.New(f)
	require.NoError(t, s.TransactionManager().Begin(ctx))
	require.NoError(t, s.TransactionManager().Commit(ctx))

	realms, err := model.Realms(ctx, s)
	require.NoError(t, err)
	_, err = realms.CreateRealm(ctx, model.Realm{Name: "direct"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	err = session.RunInTransaction(ctx, f, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		require.NoError(t, err)
		_, err = realms.GetRealmByName(ctx, "direct")
		return err
	})
	require.NoError(t, err)
}

func TestRemoveRealmDropsComponents(t *testing.T) {
	f := newSessionFactory(t)

	err := session.RunInTransaction(context.Background(), f, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		require.NoError(t, err)

		realm, err := realms.CreateRealm(ctx, model.Realm{Name: "cascade"})
		require.NoError(t, err)
		component, err := realms.AddComponent(ctx, realm.ID, model.Component{ProviderID: "static", ProviderType: model.ProviderTypeUserStorage})
		require.NoError(t, err)

		removed, err := realms.RemoveRealm(ctx, realm.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = realms.GetComponent(ctx, realm.ID, component.ID)
		assert.ErrorIs(t, err, model.ErrComponentNotFound)
		return nil
	})
	require.NoError(t, err)
}
