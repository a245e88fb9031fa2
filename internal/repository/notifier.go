package repository

import "context"

// Collection names the store collections that emit change notifications.
type Collection string

const (
	CollectionApplications            Collection = "applications"
	CollectionIntents                 Collection = "intents"
	CollectionEntityTypes             Collection = "entity_types"
	CollectionNamespaceConfigurations Collection = "namespace_configurations"
	CollectionDictionaries            Collection = "dictionaries"
)

// ChangeNotifier delivers payload-free change callbacks per collection.
type ChangeNotifier interface {
	Listen(collection Collection, callback func())
	// Start blocks dispatching notifications until ctx is done.
	Start(ctx context.Context) error
}
