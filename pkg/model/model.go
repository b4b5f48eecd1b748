package model

import (
	"context"
	"time"

	"github.com/porthorian/modeltest/pkg/provider"
)

type Realm struct {
	ID         string
	Name       string
	Enabled    bool
	DateAdded  time.Time
	Attributes map[string]string
}

type Component struct {
	ID           string
	Name         string
	ProviderID   string
	ProviderType provider.ProviderType
	ParentID     string
	SubType      string
	Config       map[string][]string
}

type User struct {
	ID             string
	RealmID        string
	Username       string
	Email          string
	Enabled        bool
	FederationLink string
	DateAdded      time.Time
}

type RealmProvider interface {
	provider.Provider
	CreateRealm(ctx context.Context, realm Realm) (Realm, error)
	GetRealm(ctx context.Context, id string) (Realm, error)
	GetRealmByName(ctx context.Context, name string) (Realm, error)
	ListRealms(ctx context.Context) ([]Realm, error)
	RemoveRealm(ctx context.Context, id string) (bool, error)

	AddComponent(ctx context.Context, realmID string, component Component) (Component, error)
	GetComponent(ctx context.Context, realmID string, id string) (Component, error)
	ListComponents(ctx context.Context, realmID string, providerType provider.ProviderType) ([]Component, error)
	RemoveComponent(ctx context.Context, realmID string, id string) (bool, error)
}

type UserProvider interface {
	provider.Provider
	AddUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, realmID string, id string) (User, error)
	GetUserByUsername(ctx context.Context, realmID string, username string) (User, error)
	ListUsers(ctx context.Context, realmID string) ([]User, error)
	RemoveUser(ctx context.Context, realmID string, id string) (bool, error)
	CountUsers(ctx context.Context, realmID string) (int, error)
}

// UserStorageProvider is implemented by federation providers that expose
// users kept outside of the local user store.
type UserStorageProvider interface {
	provider.Provider
	LookupUser(ctx context.Context, realm Realm, username string) (User, error)
	ValidateCredentials(ctx context.Context, realm Realm, username string, password string) (bool, error)
}

func Realms(ctx context.Context, s provider.Session) (RealmProvider, error) {
	return provider.As[RealmProvider](ctx, s, SpiRealm)
}

func Users(ctx context.Context, s provider.Session) (UserProvider, error) {
	return provider.As[UserProvider](ctx, s, SpiUser)
}

func (r Realm) Clone() Realm {
	if r.Attributes != nil {
		attributes := make(map[string]string, len(r.Attributes))
		for key, value := range r.Attributes {
			attributes[key] = value
		}
		r.Attributes = attributes
	}
	return r
}

func (c Component) Clone() Component {
	if c.Config != nil {
		config := make(map[string][]string, len(c.Config))
		for key, values := range c.Config {
			config[key] = append([]string(nil), values...)
		}
		c.Config = config
	}
	return c
}

// Get returns the first value of a component config key.
func (c Component) Get(key string) string {
	if values := c.Config[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
