// Package federation provides a static user-storage provider. Users and
// their passwords come from the factory scope; a realm sees them once a
// component for the provider is registered in it.
//
//	spi:
//	  userStorage:
//	    providers:
//	      static:
//	        user.alice: secret
//	        user.bob: pbkdf2$sha256$27500$...$...
package federation

import (
	"context"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/porthorian/modeltest/pkg/crypto"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

const (
	ProviderID = "static"
	userPrefix = "user."
)

type Factory struct {
	provider.BaseFactory
	logger logr.Logger

	hasher      crypto.Hasher
	credentials map[string]string
}

var _ provider.Factory = (*Factory)(nil)

func NewFactory(logger logr.Logger) *Factory {
	return &Factory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiUserStorage, FactoryID: ProviderID},
		logger:      logger.WithName("federation"),
		credentials: map[string]string{},
	}
}

// Init hashes every plain text password found under user.<name> keys.
// Values that are already encoded are kept as they are.
func (f *Factory) Init(ctx context.Context, scope provider.Scope) error {
	hasher, err := crypto.NewPBKDF2Hasher(crypto.PBKDF2OptionsFromScope(scope))
	if err != nil {
		return err
	}

	credentials := map[string]string{}
	for _, key := range scope.Keys() {
		if !strings.HasPrefix(key, userPrefix) {
			continue
		}
		username := normalize(strings.TrimPrefix(key, userPrefix))
		if username == "" {
			continue
		}

		secret := scope.Get(key)
		if !crypto.IsEncoded(secret) {
			if secret, err = hasher.Hash(secret); err != nil {
				return err
			}
		}
		credentials[username] = secret
	}

	f.hasher = hasher
	f.credentials = credentials
	f.logger.V(1).Info("loaded static users", "count", len(credentials))
	return nil
}

func (f *Factory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	return &Provider{factory: f, session: s}, nil
}

// Usernames lists the configured users in order.
func (f *Factory) Usernames() []string {
	names := make([]string, 0, len(f.credentials))
	for name := range f.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Provider struct {
	factory *Factory
	session provider.Session
}

var _ model.UserStorageProvider = (*Provider)(nil)

func (p *Provider) LookupUser(ctx context.Context, realm model.Realm, username string) (model.User, error) {
	username = normalize(username)
	if _, ok := p.factory.credentials[username]; !ok {
		return model.User{}, model.ErrUserNotFound
	}

	component, err := p.component(ctx, realm)
	if err != nil {
		return model.User{}, err
	}

	return model.User{
		ID:             StorageID(component.ID, username),
		RealmID:        realm.ID,
		Username:       username,
		Enabled:        true,
		FederationLink: component.ID,
	}, nil
}

func (p *Provider) ValidateCredentials(ctx context.Context, realm model.Realm, username string, password string) (bool, error) {
	if _, err := p.LookupUser(ctx, realm, username); err != nil {
		return false, err
	}
	if password == "" {
		return false, nil
	}
	return p.factory.hasher.Verify(password, p.factory.credentials[normalize(username)])
}

func (p *Provider) Close() error {
	return nil
}

// component finds the realm component linking this provider. Without one the
// realm has no federated users.
func (p *Provider) component(ctx context.Context, realm model.Realm) (model.Component, error) {
	realms, err := model.Realms(ctx, p.session)
	if err != nil {
		return model.Component{}, err
	}

	components, err := realms.ListComponents(ctx, realm.ID, model.ProviderTypeUserStorage)
	if err != nil {
		return model.Component{}, err
	}
	for _, component := range components {
		if component.ProviderID == p.factory.ID() {
			return component, nil
		}
	}
	return model.Component{}, model.ErrUserNotFound
}

// StorageID is the id of a federated user: f:<component id>:<username>.
func StorageID(componentID string, username string) string {
	return "f:" + componentID + ":" + username
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
