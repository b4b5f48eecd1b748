package modeltest

import (
	"context"

	"github.com/google/uuid"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/stretchr/testify/require"
)

// RegisterUserFederationIfAvailable links the only visible user-storage
// provider factory to realm and returns the new component id. It returns ""
// when there is no such factory and fails the test when there are several.
func (h *Harness) RegisterUserFederationIfAvailable(ctx context.Context, t TestingT, s *session.Session, realm *model.Realm) string {
	t.Helper()
	if realm == nil {
		return ""
	}

	factories := h.factory.ProviderFactories(model.ProviderTypeUserStorage)
	if len(factories) == 0 {
		return ""
	}
	if len(factories) > 1 {
		require.Len(t, factories, 1, "Cannot handle more than 1 user federation provider")
		return ""
	}

	id := factories[0].ID()
	component := model.Component{
		ID:           uuid.NewString(),
		Name:         id,
		ProviderID:   id,
		ProviderType: model.ProviderTypeUserStorage,
		ParentID:     realm.ID,
	}

	realms, err := model.Realms(ctx, s)
	if err == nil {
		component, err = realms.AddComponent(ctx, realm.ID, component)
	}
	if err != nil {
		require.NoError(t, err)
		return ""
	}

	h.logger.Info("registered user federation provider", "realm", realm.Name, "provider", id, "component", component.ID)
	return component.ID
}
