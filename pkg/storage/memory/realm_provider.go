package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

type RealmProvider struct {
	realms     view[model.Realm]
	components view[model.Component]
}

var _ model.RealmProvider = (*RealmProvider)(nil)

func (p *RealmProvider) begin(context.Context) error {
	p.realms.begin()
	p.components.begin()
	return nil
}

func (p *RealmProvider) commit(context.Context) error {
	p.realms.commit()
	p.components.commit()
	return nil
}

func (p *RealmProvider) rollback(context.Context) error {
	p.realms.rollback()
	p.components.rollback()
	return nil
}

func (p *RealmProvider) CreateRealm(ctx context.Context, realm model.Realm) (model.Realm, error) {
	realm.Name = strings.TrimSpace(realm.Name)
	if realm.Name == "" {
		return model.Realm{}, model.ErrInvalidRealm
	}
	if _, err := p.GetRealmByName(ctx, realm.Name); err == nil {
		return model.Realm{}, model.ErrRealmExists
	}

	if realm.ID == "" {
		realm.ID = uuid.NewString()
	}
	if realm.DateAdded.IsZero() {
		realm.DateAdded = time.Now().UTC()
	}

	realm = realm.Clone()
	p.realms.put(realm.ID, realm)
	return realm.Clone(), nil
}

func (p *RealmProvider) GetRealm(ctx context.Context, id string) (model.Realm, error) {
	realm, ok := p.realms.get(id)
	if !ok {
		return model.Realm{}, model.ErrRealmNotFound
	}
	return realm.Clone(), nil
}

func (p *RealmProvider) GetRealmByName(ctx context.Context, name string) (model.Realm, error) {
	matches := p.realms.values(func(r model.Realm) bool {
		return r.Name == name
	})
	if len(matches) == 0 {
		return model.Realm{}, model.ErrRealmNotFound
	}
	return matches[0].Clone(), nil
}

func (p *RealmProvider) ListRealms(ctx context.Context) ([]model.Realm, error) {
	realms := p.realms.values(nil)
	for i := range realms {
		realms[i] = realms[i].Clone()
	}
	return realms, nil
}

func (p *RealmProvider) RemoveRealm(ctx context.Context, id string) (bool, error) {
	if !p.realms.delete(id) {
		return false, nil
	}
	for _, component := range p.components.values(func(c model.Component) bool { return c.ParentID == id }) {
		p.components.delete(componentKey(id, component.ID))
	}
	return true, nil
}

func (p *RealmProvider) AddComponent(ctx context.Context, realmID string, component model.Component) (model.Component, error) {
	if _, ok := p.realms.get(realmID); !ok {
		return model.Component{}, model.ErrRealmNotFound
	}
	if component.ProviderID == "" || component.ProviderType == "" {
		return model.Component{}, model.ErrInvalidComponent
	}

	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	component.ParentID = realmID

	component = component.Clone()
	p.components.put(componentKey(realmID, component.ID), component)
	return component.Clone(), nil
}

func (p *RealmProvider) GetComponent(ctx context.Context, realmID string, id string) (model.Component, error) {
	component, ok := p.components.get(componentKey(realmID, id))
	if !ok {
		return model.Component{}, model.ErrComponentNotFound
	}
	return component.Clone(), nil
}

func (p *RealmProvider) ListComponents(ctx context.Context, realmID string, providerType provider.ProviderType) ([]model.Component, error) {
	components := p.components.values(func(c model.Component) bool {
		return c.ParentID == realmID && (providerType == "" || c.ProviderType == providerType)
	})
	for i := range components {
		components[i] = components[i].Clone()
	}
	return components, nil
}

func (p *RealmProvider) RemoveComponent(ctx context.Context, realmID string, id string) (bool, error) {
	return p.components.delete(componentKey(realmID, id)), nil
}

func (p *RealmProvider) Close() error {
	return nil
}

func componentKey(realmID string, id string) string {
	return realmID + "/" + id
}
