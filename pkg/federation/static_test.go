package federation

import (
	"context"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/porthorian/modeltest/pkg/crypto"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/porthorian/modeltest/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFactory(t *testing.T, users map[string]string) *provider.SessionFactory {
	t.Helper()

	m := provider.NewStaticManager()
	for _, spi := range model.Spis() {
		require.NoError(t, m.RegisterSpi(spi))
	}
	require.NoError(t, m.RegisterFactory(memory.NewRealmFactory()))
	require.NoError(t, m.RegisterFactory(NewFactory(testr.New(t))))

	scope := map[string]string{"iterations": "100"}
	for name, secret := range users {
		scope["user."+name] = secret
	}
	config := provider.Config{
		model.SpiUserStorage: provider.SpiConfig{Providers: map[string]map[string]string{ProviderID: scope}},
	}

	f := provider.NewSessionFactory(m, config, testr.New(t))
	require.NoError(t, f.Init(context.Background(), nil))
	t.Cleanup(func() {
		_ = f.Close(context.Background())
	})
	return f
}

func TestFederatedUsersRequireComponent(t *testing.T) {
	hasher, err := crypto.NewPBKDF2Hasher(crypto.PBKDF2Options{Iterations: 100})
	require.NoError(t, err)
	encoded, err := hasher.Hash("hunter2")
	require.NoError(t, err)

	f := newSessionFactory(t, map[string]string{"Alice": "secret", "bob": encoded})

	err = session.RunInTransaction(context.Background(), f, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		require.NoError(t, err)
		storage, err := provider.As[model.UserStorageProvider](ctx, s, model.SpiUserStorage)
		require.NoError(t, err)

		realm, err := realms.CreateRealm(ctx, model.Realm{Name: "federated"})
		require.NoError(t, err)

		_, err = storage.LookupUser(ctx, realm, "alice")
		assert.ErrorIs(t, err, model.ErrUserNotFound)

		component, err := realms.AddComponent(ctx, realm.ID, model.Component{
			Name:         ProviderID,
			ProviderID:   ProviderID,
			ProviderType: model.ProviderTypeUserStorage,
		})
		require.NoError(t, err)

		alice, err := storage.LookupUser(ctx, realm, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, StorageID(component.ID, "alice"), alice.ID)
		assert.Equal(t, component.ID, alice.FederationLink)

		ok, err := storage.ValidateCredentials(ctx, realm, "alice", "secret")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = storage.ValidateCredentials(ctx, realm, "bob", "hunter2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = storage.ValidateCredentials(ctx, realm, "bob", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = storage.ValidateCredentials(ctx, realm, "carol", "secret")
		assert.ErrorIs(t, err, model.ErrUserNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestUsernames(t *testing.T) {
	f := NewFactory(testr.New(t))
	require.NoError(t, f.Init(context.Background(), provider.NewScope(map[string]string{
		"iterations": "100",
		"user.zed":   "a",
		"user.Amy":   "b",
		"user.":      "ignored",
		"other":      "ignored",
	})))
	assert.Equal(t, []string{"amy", "zed"}, f.Usernames())
}
