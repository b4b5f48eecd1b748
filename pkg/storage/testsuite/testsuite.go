// Package testsuite provides shared conformance tests for realm and user
// providers. Call RunAll from a test function with a session factory whose
// realm and user SPIs resolve to the providers under test.
package testsuite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAll runs the complete provider conformance suite as subtests.
func RunAll(t *testing.T, factory session.Factory) {
	t.Helper()

	t.Run("RealmCRUD", func(t *testing.T) { TestRealmCRUD(t, factory) })
	t.Run("ComponentCRUD", func(t *testing.T) { TestComponentCRUD(t, factory) })
	t.Run("UserCRUD", func(t *testing.T) { TestUserCRUD(t, factory) })
	t.Run("ReadYourWrites", func(t *testing.T) { TestReadYourWrites(t, factory) })
	t.Run("RollbackLeavesNoTrace", func(t *testing.T) { TestRollbackLeavesNoTrace(t, factory) })
	t.Run("FailedJobLeavesNoTrace", func(t *testing.T) { TestFailedJobLeavesNoTrace(t, factory) })
}

func inTransaction(t *testing.T, factory session.Factory, fn func(ctx context.Context, realms model.RealmProvider, users model.UserProvider) error) {
	t.Helper()
	err := session.RunInTransaction(context.Background(), factory, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		if err != nil {
			return err
		}
		users, err := model.Users(ctx, s)
		if err != nil {
			return err
		}
		return fn(ctx, realms, users)
	})
	require.NoError(t, err)
}

func createRealm(t *testing.T, factory session.Factory) model.Realm {
	t.Helper()
	var realm model.Realm
	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		var err error
		realm, err = realms.CreateRealm(ctx, model.Realm{Name: "realm-" + uuid.NewString(), Enabled: true})
		return err
	})
	t.Cleanup(func() {
		inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, users model.UserProvider) error {
			list, err := users.ListUsers(ctx, realm.ID)
			if err != nil {
				return err
			}
			for _, u := range list {
				if _, err := users.RemoveUser(ctx, realm.ID, u.ID); err != nil {
					return err
				}
			}
			_, err = realms.RemoveRealm(ctx, realm.ID)
			return err
		})
	})
	return realm
}

func TestRealmCRUD(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		byID, err := realms.GetRealm(ctx, realm.ID)
		require.NoError(t, err)
		assert.Equal(t, realm.Name, byID.Name)
		assert.True(t, byID.Enabled)

		byName, err := realms.GetRealmByName(ctx, realm.Name)
		require.NoError(t, err)
		assert.Equal(t, realm.ID, byName.ID)

		_, err = realms.CreateRealm(ctx, model.Realm{Name: realm.Name})
		assert.ErrorIs(t, err, model.ErrRealmExists)

		_, err = realms.CreateRealm(ctx, model.Realm{Name: "  "})
		assert.ErrorIs(t, err, model.ErrInvalidRealm)

		list, err := realms.ListRealms(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, list)
		return nil
	})

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		removed, err := realms.RemoveRealm(ctx, realm.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = realms.GetRealm(ctx, realm.ID)
		assert.ErrorIs(t, err, model.ErrRealmNotFound)

		removed, err = realms.RemoveRealm(ctx, realm.ID)
		require.NoError(t, err)
		assert.False(t, removed)
		return nil
	})
}

func TestComponentCRUD(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)
	var componentID string

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		component, err := realms.AddComponent(ctx, realm.ID, model.Component{
			Name:         "static",
			ProviderID:   "static",
			ProviderType: model.ProviderTypeUserStorage,
			Config:       map[string][]string{"priority": {"1"}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, component.ID)
		assert.Equal(t, realm.ID, component.ParentID)
		componentID = component.ID

		_, err = realms.AddComponent(ctx, realm.ID, model.Component{Name: "broken"})
		assert.ErrorIs(t, err, model.ErrInvalidComponent)

		_, err = realms.AddComponent(ctx, uuid.NewString(), model.Component{ProviderID: "x", ProviderType: "y"})
		assert.ErrorIs(t, err, model.ErrRealmNotFound)
		return nil
	})

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		component, err := realms.GetComponent(ctx, realm.ID, componentID)
		require.NoError(t, err)
		assert.Equal(t, "static", component.ProviderID)
		assert.Equal(t, "1", component.Get("priority"))

		list, err := realms.ListComponents(ctx, realm.ID, model.ProviderTypeUserStorage)
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = realms.ListComponents(ctx, realm.ID, model.ProviderTypeRealm)
		require.NoError(t, err)
		assert.Empty(t, list)

		removed, err := realms.RemoveComponent(ctx, realm.ID, componentID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = realms.GetComponent(ctx, realm.ID, componentID)
		assert.ErrorIs(t, err, model.ErrComponentNotFound)
		return nil
	})
}

func TestUserCRUD(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)

	inTransaction(t, factory, func(ctx context.Context, _ model.RealmProvider, users model.UserProvider) error {
		user, err := users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "Alice", Email: "alice@example.com", Enabled: true})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)

		_, err = users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "alice"})
		assert.ErrorIs(t, err, model.ErrUserExists)

		_, err = users.AddUser(ctx, model.User{RealmID: realm.ID})
		assert.ErrorIs(t, err, model.ErrInvalidUser)

		_, err = users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "bob"})
		require.NoError(t, err)
		return nil
	})

	inTransaction(t, factory, func(ctx context.Context, _ model.RealmProvider, users model.UserProvider) error {
		alice, err := users.GetUserByUsername(ctx, realm.ID, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", alice.Email)

		byID, err := users.GetUser(ctx, realm.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byID.ID)

		count, err := users.CountUsers(ctx, realm.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		list, err := users.ListUsers(ctx, realm.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		removed, err := users.RemoveUser(ctx, realm.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = users.GetUser(ctx, realm.ID, alice.ID)
		assert.ErrorIs(t, err, model.ErrUserNotFound)
		return nil
	})
}

func TestReadYourWrites(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, users model.UserProvider) error {
		user, err := users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "carol"})
		require.NoError(t, err)

		found, err := users.GetUserByUsername(ctx, realm.ID, "carol")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		component, err := realms.AddComponent(ctx, realm.ID, model.Component{ProviderID: "p", ProviderType: "t"})
		require.NoError(t, err)
		_, err = realms.GetComponent(ctx, realm.ID, component.ID)
		require.NoError(t, err)
		return nil
	})
}

func TestRollbackLeavesNoTrace(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s := session.New(factory)
		require.NoError(t, s.TransactionManager().Begin(ctx))

		users, err := model.Users(ctx, s)
		require.NoError(t, err)
		_, err = users.AddUser(ctx, model.User{RealmID: realm.ID, Username: "dave"})
		require.NoError(t, err)

		count, err := users.CountUsers(ctx, realm.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, s.TransactionManager().Rollback(ctx))
		require.NoError(t, s.Close(ctx))
	}

	inTransaction(t, factory, func(ctx context.Context, _ model.RealmProvider, users model.UserProvider) error {
		count, err := users.CountUsers(ctx, realm.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		return nil
	})
}

func TestFailedJobLeavesNoTrace(t *testing.T, factory session.Factory) {
	realm := createRealm(t, factory)
	name := "failed-" + uuid.NewString()

	err := session.RunInTransaction(context.Background(), factory, func(ctx context.Context, s *session.Session) error {
		realms, err := model.Realms(ctx, s)
		if err != nil {
			return err
		}
		if _, err := realms.CreateRealm(ctx, model.Realm{Name: name}); err != nil {
			return err
		}
		_, err = realms.AddComponent(ctx, realm.ID, model.Component{ProviderID: "p", ProviderType: "t"})
		if err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	inTransaction(t, factory, func(ctx context.Context, realms model.RealmProvider, _ model.UserProvider) error {
		_, err := realms.GetRealmByName(ctx, name)
		assert.ErrorIs(t, err, model.ErrRealmNotFound)

		list, err := realms.ListComponents(ctx, realm.ID, "")
		require.NoError(t, err)
		assert.Empty(t, list)
		return nil
	})
}
