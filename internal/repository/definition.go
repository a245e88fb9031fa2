package repository

import (
	"context"

	"github.com/eslsoft/intentd/internal/entity"
)

// ApplicationRepository defines data access for application definitions.
type ApplicationRepository interface {
	List(ctx context.Context) ([]entity.ApplicationDefinition, error)
	GetByID(ctx context.Context, id string) (*entity.ApplicationDefinition, error)
	Lookup(ctx context.Context, namespace, name string) (*entity.ApplicationDefinition, error)
	ListByNamespace(ctx context.Context, namespace string) ([]entity.ApplicationDefinition, error)
	Save(ctx context.Context, app *entity.ApplicationDefinition) (*entity.ApplicationDefinition, error)
}

// IntentRepository defines data access for intent definitions.
type IntentRepository interface {
	List(ctx context.Context) ([]entity.IntentDefinition, error)
	GetByID(ctx context.Context, id string) (*entity.IntentDefinition, error)
	ListByApplication(ctx context.Context, applicationID string) ([]entity.IntentDefinition, error)
	Save(ctx context.Context, intent *entity.IntentDefinition) (*entity.IntentDefinition, error)
}

// EntityTypeRepository defines data access for entity type definitions.
type EntityTypeRepository interface {
	List(ctx context.Context) ([]entity.EntityTypeDefinition, error)
	GetByName(ctx context.Context, name string) (*entity.EntityTypeDefinition, error)
	Save(ctx context.Context, def *entity.EntityTypeDefinition) error
}

// NamespaceConfigurationRepository defines data access for namespace sharing options.
type NamespaceConfigurationRepository interface {
	List(ctx context.Context) ([]entity.NamespaceConfiguration, error)
	Save(ctx context.Context, cfg *entity.NamespaceConfiguration) error
}

// DictionaryRepository defines data access for dictionary entity values.
type DictionaryRepository interface {
	List(ctx context.Context) ([]entity.DictionaryData, error)
	Save(ctx context.Context, data *entity.DictionaryData) error
}
