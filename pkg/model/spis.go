package model

import "github.com/porthorian/modeltest/pkg/provider"

const (
	SpiAuthorization  = "authorization"
	SpiClient         = "client"
	SpiCluster        = "cluster"
	SpiEventsStore    = "eventsStore"
	SpiExecutors      = "executors"
	SpiGroup          = "group"
	SpiRealm          = "realm"
	SpiRole           = "role"
	SpiStoreFactory   = "authorizationPersister"
	SpiUser           = "user"
	SpiUserStorage    = "userStorage"
	SpiConnectionsSql = "connectionsSql"
)

const (
	ProviderTypeAuthorization  provider.ProviderType = "authorization"
	ProviderTypeClient         provider.ProviderType = "client"
	ProviderTypeCluster        provider.ProviderType = "cluster"
	ProviderTypeEventsStore    provider.ProviderType = "events-store"
	ProviderTypeExecutors      provider.ProviderType = "executors"
	ProviderTypeGroup          provider.ProviderType = "group"
	ProviderTypeRealm          provider.ProviderType = "realm"
	ProviderTypeRole           provider.ProviderType = "role"
	ProviderTypeStoreFactory   provider.ProviderType = "store-factory"
	ProviderTypeUser           provider.ProviderType = "user"
	ProviderTypeUserStorage    provider.ProviderType = "user-storage"
	ProviderTypeConnectionsSql provider.ProviderType = "connections-sql"
)

// Spis lists every SPI known to the model, in bootstrap order.
func Spis() []provider.Spi {
	return []provider.Spi{
		{Name: SpiConnectionsSql, ProviderType: ProviderTypeConnectionsSql, Internal: true},
		{Name: SpiExecutors, ProviderType: ProviderTypeExecutors, Internal: true},
		{Name: SpiCluster, ProviderType: ProviderTypeCluster, Internal: true},
		{Name: SpiRealm, ProviderType: ProviderTypeRealm},
		{Name: SpiClient, ProviderType: ProviderTypeClient},
		{Name: SpiRole, ProviderType: ProviderTypeRole},
		{Name: SpiGroup, ProviderType: ProviderTypeGroup},
		{Name: SpiUser, ProviderType: ProviderTypeUser},
		{Name: SpiUserStorage, ProviderType: ProviderTypeUserStorage},
		{Name: SpiEventsStore, ProviderType: ProviderTypeEventsStore},
		{Name: SpiAuthorization, ProviderType: ProviderTypeAuthorization},
		{Name: SpiStoreFactory, ProviderType: ProviderTypeStoreFactory},
	}
}
