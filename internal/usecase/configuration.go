package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
)

type applicationSnapshot struct {
	byID        map[string]*entity.ApplicationDefinition
	byName      map[string]*entity.ApplicationDefinition
	byNamespace map[string][]*entity.ApplicationDefinition
}

type intentSnapshot struct {
	byID          map[string]*entity.IntentDefinition
	byApplication map[string][]entity.IntentDefinition
}

// CacheStats reports the size of the published snapshots.
type CacheStats struct {
	Applications int `json:"applications"`
	Intents      int `json:"intents"`
	EntityTypes  int `json:"entity_types"`
	Namespaces   int `json:"namespaces"`
}

// ConfigurationRepository caches application, intent and entity type definitions.
// Each map is an immutable snapshot replaced by a single atomic store on refresh.
type ConfigurationRepository struct {
	apps         repository.ApplicationRepository
	intents      repository.IntentRepository
	namespaces   repository.NamespaceConfigurationRepository
	dictionaries repository.DictionaryRepository
	entityRepo   repository.EntityTypeRepository
	notifier     repository.ChangeNotifier
	classifier   nlp.Classifier
	executor     async.Executor
	logger       logrus.FieldLogger

	entityTypes *EntityTypeIndex

	// One refresh per collection at a time, held from the store read to the publish,
	// so an older read can never overwrite a newer snapshot.
	appsMu         sync.Mutex
	intentsMu      sync.Mutex
	namespacesMu   sync.Mutex
	dictionariesMu sync.Mutex

	// sharedMu orders recomputations of the shared closure so the last one sees the latest inputs.
	sharedMu sync.Mutex

	applications     atomic.Pointer[applicationSnapshot]
	intentSnap       atomic.Pointer[intentSnapshot]
	namespaceConfigs atomic.Pointer[map[string]entity.NamespaceConfiguration]
	sharedIntents    atomic.Pointer[map[string][]entity.IntentDefinition]
}

// Stores groups the store collections read by the cache.
type Stores struct {
	Applications repository.ApplicationRepository
	Intents      repository.IntentRepository
	EntityTypes  repository.EntityTypeRepository
	Namespaces   repository.NamespaceConfigurationRepository
	Dictionaries repository.DictionaryRepository
	Notifier     repository.ChangeNotifier
}

func NewConfigurationRepository(stores Stores, classifier nlp.Classifier, executor async.Executor, logger logrus.FieldLogger) *ConfigurationRepository {
	c := &ConfigurationRepository{
		apps:         stores.Applications,
		intents:      stores.Intents,
		namespaces:   stores.Namespaces,
		dictionaries: stores.Dictionaries,
		entityRepo:   stores.EntityTypes,
		notifier:     stores.Notifier,
		classifier:   classifier,
		executor:     executor,
		logger:       logger.WithField("component", "configuration"),
		entityTypes:  NewEntityTypeIndex(stores.EntityTypes, logger),
	}
	c.applications.Store(&applicationSnapshot{
		byID:        map[string]*entity.ApplicationDefinition{},
		byName:      map[string]*entity.ApplicationDefinition{},
		byNamespace: map[string][]*entity.ApplicationDefinition{},
	})
	c.intentSnap.Store(&intentSnapshot{
		byID:          map[string]*entity.IntentDefinition{},
		byApplication: map[string][]entity.IntentDefinition{},
	})
	c.namespaceConfigs.Store(&map[string]entity.NamespaceConfiguration{})
	c.sharedIntents.Store(&map[string][]entity.IntentDefinition{})
	return c
}

// EntityTypes exposes the entity type index.
func (c *ConfigurationRepository) EntityTypes() *EntityTypeIndex { return c.entityTypes }

// InitRepository loads every collection, seeds built-in entity types and registers change listeners.
// It returns false when any step fails; nothing should classify against a partially loaded cache.
func (c *ConfigurationRepository) InitRepository(ctx context.Context) bool {
	if err := c.initRepository(ctx); err != nil {
		c.logger.WithError(err).Error("configuration cache initialization failed")
		return false
	}
	c.logger.WithFields(logrus.Fields{
		"applications": c.Snapshot().Applications,
		"intents":      c.Snapshot().Intents,
		"entity_types": c.Snapshot().EntityTypes,
	}).Info("configuration cache ready")
	return true
}

func (c *ConfigurationRepository) initRepository(ctx context.Context) error {
	if err := c.RefreshEntityTypes(ctx); err != nil {
		return err
	}
	if err := c.seedBuiltInEntityTypes(ctx); err != nil {
		return err
	}
	if err := c.RefreshApplications(ctx); err != nil {
		return err
	}
	if err := c.RefreshNamespaceConfigurations(ctx); err != nil {
		return err
	}
	if err := c.RefreshIntents(ctx); err != nil {
		return err
	}
	if c.notifier != nil {
		c.listen(repository.CollectionEntityTypes, c.RefreshEntityTypes)
		c.listen(repository.CollectionApplications, c.RefreshApplications)
		c.listen(repository.CollectionNamespaceConfigurations, c.RefreshNamespaceConfigurations)
		c.listen(repository.CollectionIntents, c.RefreshIntents)
		c.listen(repository.CollectionDictionaries, c.RefreshDictionaries)
	}
	return c.RefreshDictionaries(ctx)
}

func (c *ConfigurationRepository) listen(collection repository.Collection, refresh func(context.Context) error) {
	c.notifier.Listen(collection, func() {
		c.executor.Submit("refresh "+string(collection), refresh)
	})
}

func (c *ConfigurationRepository) seedBuiltInEntityTypes(ctx context.Context) error {
	builtIns, err := c.classifier.BuiltInEntityTypes(ctx)
	if err != nil {
		return fmt.Errorf("built-in entity types: %w", err)
	}
	for _, name := range builtIns {
		if c.entityTypes.Resolve(name) != nil {
			continue
		}
		def := entity.EntityTypeDefinition{Name: name, Description: name}
		if err := c.entityRepo.Save(ctx, &def); err != nil {
			return fmt.Errorf("save built-in entity type %s: %w", name, err)
		}
		c.entityTypes.Add(def)
		c.logger.WithField("entity_type", name).Info("built-in entity type created")
	}
	return nil
}

// RefreshEntityTypes rebuilds the entity type index.
func (c *ConfigurationRepository) RefreshEntityTypes(ctx context.Context) error {
	return c.entityTypes.Refresh(ctx)
}

// AddNewEntityType inserts one entity type without a full refresh; no-op if already present.
func (c *ConfigurationRepository) AddNewEntityType(def entity.EntityTypeDefinition) {
	c.entityTypes.Add(def)
}

// RefreshApplications rebuilds the application maps and the shared-namespace closure.
func (c *ConfigurationRepository) RefreshApplications(ctx context.Context) error {
	c.appsMu.Lock()
	defer c.appsMu.Unlock()

	apps, err := c.apps.List(ctx)
	if err != nil {
		c.logger.WithError(err).Error("refresh applications")
		return fmt.Errorf("list applications: %w", err)
	}
	next := &applicationSnapshot{
		byID:        make(map[string]*entity.ApplicationDefinition, len(apps)),
		byName:      make(map[string]*entity.ApplicationDefinition, len(apps)),
		byNamespace: map[string][]*entity.ApplicationDefinition{},
	}
	for i := range apps {
		app := &apps[i]
		next.byID[app.ID] = app
		next.byName[app.QualifiedName()] = app
		next.byNamespace[app.Namespace] = append(next.byNamespace[app.Namespace], app)
	}
	c.applications.Store(next)
	c.refreshIntentsSharedByApplications()
	return nil
}

// RefreshIntents rebuilds the intent maps and the shared-namespace closure.
func (c *ConfigurationRepository) RefreshIntents(ctx context.Context) error {
	c.intentsMu.Lock()
	defer c.intentsMu.Unlock()

	intents, err := c.intents.List(ctx)
	if err != nil {
		c.logger.WithError(err).Error("refresh intents")
		return fmt.Errorf("list intents: %w", err)
	}
	next := &intentSnapshot{
		byID:          make(map[string]*entity.IntentDefinition, len(intents)),
		byApplication: map[string][]entity.IntentDefinition{},
	}
	for i := range intents {
		intent := &intents[i]
		next.byID[intent.ID] = intent
		for _, appID := range intent.ApplicationIDs {
			next.byApplication[appID] = append(next.byApplication[appID], *intent)
		}
	}
	c.intentSnap.Store(next)
	c.refreshIntentsSharedByApplications()
	return nil
}

// RefreshNamespaceConfigurations rebuilds the namespace sharing options and the shared-namespace closure.
func (c *ConfigurationRepository) RefreshNamespaceConfigurations(ctx context.Context) error {
	c.namespacesMu.Lock()
	defer c.namespacesMu.Unlock()

	configs, err := c.namespaces.List(ctx)
	if err != nil {
		c.logger.WithError(err).Error("refresh namespace configurations")
		return fmt.Errorf("list namespace configurations: %w", err)
	}
	next := lo.Associate(configs, func(cfg entity.NamespaceConfiguration) (string, entity.NamespaceConfiguration) {
		return cfg.Namespace, cfg
	})
	c.namespaceConfigs.Store(&next)
	c.refreshIntentsSharedByApplications()
	return nil
}

// RefreshDictionaries reloads every dictionary into the classifier.
func (c *ConfigurationRepository) RefreshDictionaries(ctx context.Context) error {
	c.dictionariesMu.Lock()
	defer c.dictionariesMu.Unlock()

	dictionaries, err := c.dictionaries.List(ctx)
	if err != nil {
		c.logger.WithError(err).Error("refresh dictionaries")
		return fmt.Errorf("list dictionaries: %w", err)
	}
	if err := c.classifier.LoadDictionaries(ctx, dictionaries); err != nil {
		c.logger.WithError(err).Error("load dictionaries")
		return fmt.Errorf("load dictionaries: %w", err)
	}
	return nil
}

func (c *ConfigurationRepository) refreshIntentsSharedByApplications() {
	c.sharedMu.Lock()
	defer c.sharedMu.Unlock()
	apps := c.applications.Load()
	intents := c.intentSnap.Load()
	configs := *c.namespaceConfigs.Load()
	next := make(map[string][]entity.IntentDefinition, len(apps.byID))
	for id, app := range apps.byID {
		next[id] = sharedClosure(app,
			func(ns string) []*entity.ApplicationDefinition { return apps.byNamespace[ns] },
			func(appID string) []entity.IntentDefinition { return intents.byApplication[appID] },
			func(ns string) *entity.NamespaceConfiguration {
				if cfg, ok := configs[ns]; ok {
					return &cfg
				}
				return nil
			})
	}
	c.sharedIntents.Store(&next)
}

// sharedClosure returns app's own intents followed by the intents of every application reachable
// through namespaces imported with model sharing, deduplicated by id.
func sharedClosure(
	app *entity.ApplicationDefinition,
	appsOf func(namespace string) []*entity.ApplicationDefinition,
	intentsOf func(appID string) []entity.IntentDefinition,
	configOf func(namespace string) *entity.NamespaceConfiguration,
) []entity.IntentDefinition {
	seen := map[string]struct{}{}
	var out []entity.IntentDefinition
	add := func(intents []entity.IntentDefinition) {
		for _, intent := range intents {
			if _, dup := seen[intent.ID]; dup {
				continue
			}
			seen[intent.ID] = struct{}{}
			out = append(out, intent)
		}
	}
	add(intentsOf(app.ID))

	visited := map[string]struct{}{app.Namespace: {}}
	queue := []string{app.Namespace}
	for len(queue) > 0 {
		ns := queue[0]
		queue = queue[1:]
		cfg := configOf(ns)
		if cfg == nil {
			continue
		}
		for _, imported := range cfg.ModelSharedNamespaces() {
			if _, ok := visited[imported]; ok {
				continue
			}
			visited[imported] = struct{}{}
			queue = append(queue, imported)
			for _, other := range appsOf(imported) {
				add(intentsOf(other.ID))
			}
		}
	}
	return out
}

// Application returns the application named namespace:name, or nil.
func (c *ConfigurationRepository) Application(ctx context.Context, namespace, name string) (*entity.ApplicationDefinition, error) {
	if app, ok := c.applications.Load().byName[entity.QualifiedName(namespace, name)]; ok {
		clone := *app
		return &clone, nil
	}
	app, err := c.apps.Lookup(ctx, namespace, name)
	if err != nil {
		return nil, fmt.Errorf("lookup application %s:%s: %w", namespace, name, err)
	}
	return app, nil
}

// ApplicationByID returns the application with the given id, or nil.
func (c *ConfigurationRepository) ApplicationByID(ctx context.Context, id string) (*entity.ApplicationDefinition, error) {
	if app, ok := c.applications.Load().byID[id]; ok {
		clone := *app
		return &clone, nil
	}
	app, err := c.apps.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return app, nil
}

// Applications returns every cached application.
func (c *ConfigurationRepository) Applications() []entity.ApplicationDefinition {
	apps := c.applications.Load().byID
	out := make([]entity.ApplicationDefinition, 0, len(apps))
	for _, app := range apps {
		out = append(out, *app)
	}
	return out
}

// IntentsByApplication returns the intents referencing appID.
func (c *ConfigurationRepository) IntentsByApplication(ctx context.Context, appID string) ([]entity.IntentDefinition, error) {
	if intents, ok := c.intentSnap.Load().byApplication[appID]; ok {
		return intents, nil
	}
	intents, err := c.intents.ListByApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("list intents of %s: %w", appID, err)
	}
	return intents, nil
}

// SharedNamespaceIntents returns the application's own intents plus those shared through namespace imports.
func (c *ConfigurationRepository) SharedNamespaceIntents(ctx context.Context, appID string) ([]entity.IntentDefinition, error) {
	if intents, ok := (*c.sharedIntents.Load())[appID]; ok {
		return intents, nil
	}
	app, err := c.ApplicationByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownApplication, appID)
	}
	var lookupErr error
	configs := *c.namespaceConfigs.Load()
	intents := sharedClosure(app,
		func(ns string) []*entity.ApplicationDefinition {
			apps, err := c.apps.ListByNamespace(ctx, ns)
			if err != nil {
				lookupErr = err
				return nil
			}
			return lo.ToSlicePtr(apps)
		},
		func(id string) []entity.IntentDefinition {
			intents, err := c.IntentsByApplication(ctx, id)
			if err != nil {
				lookupErr = err
			}
			return intents
		},
		func(ns string) *entity.NamespaceConfiguration {
			if cfg, ok := configs[ns]; ok {
				return &cfg
			}
			return nil
		})
	if lookupErr != nil {
		return nil, fmt.Errorf("shared intents of %s: %w", appID, lookupErr)
	}
	return intents, nil
}

// IntentByID returns the intent with the given id, or nil.
func (c *ConfigurationRepository) IntentByID(ctx context.Context, id string) (*entity.IntentDefinition, error) {
	if intent, ok := c.intentSnap.Load().byID[id]; ok {
		clone := *intent
		return &clone, nil
	}
	intent, err := c.intents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", id, err)
	}
	return intent, nil
}

// EntityTypeByName returns the entity type definition, or nil.
func (c *ConfigurationRepository) EntityTypeByName(ctx context.Context, name string) (*entity.EntityTypeDefinition, error) {
	return c.entityTypes.ByName(ctx, name)
}

func (c *ConfigurationRepository) EntityTypeExists(ctx context.Context, name string) bool {
	return c.entityTypes.Exists(ctx, name)
}

// ToEntityType materializes the runtime entity type tree.
func (c *ConfigurationRepository) ToEntityType(def *entity.EntityTypeDefinition) *nlp.EntityType {
	return c.entityTypes.ToEntityType(def)
}

// ToIntent wraps an intent definition with its resolved entities.
func (c *ConfigurationRepository) ToIntent(ctx context.Context, def entity.IntentDefinition) nlp.Intent {
	out := nlp.Intent{Name: def.QualifiedName(), EntitiesRegexp: def.EntitiesRegexp}
	for _, e := range def.Entities {
		entityType := c.entityTypes.Resolve(e.EntityTypeName)
		if entityType == nil {
			typeDef, err := c.entityTypes.ByName(ctx, e.EntityTypeName)
			if err != nil || typeDef == nil {
				continue
			}
			entityType = c.entityTypes.ToEntityType(typeDef)
		}
		out.Entities = append(out.Entities, nlp.Entity{EntityType: entityType, Role: e.Role})
	}
	return out
}

// ToApplication builds the classifier-facing application model.
func (c *ConfigurationRepository) ToApplication(ctx context.Context, def *entity.ApplicationDefinition) (nlp.Application, error) {
	intents, err := c.IntentsByApplication(ctx, def.ID)
	if err != nil {
		return nlp.Application{}, err
	}
	return nlp.Application{
		Name:             def.QualifiedName(),
		SupportedLocales: def.SupportedLocales,
		Intents: lo.Map(intents, func(intent entity.IntentDefinition, _ int) nlp.Intent {
			return c.ToIntent(ctx, intent)
		}),
	}, nil
}

// Snapshot reports the current cache sizes.
func (c *ConfigurationRepository) Snapshot() CacheStats {
	return CacheStats{
		Applications: len(c.applications.Load().byID),
		Intents:      len(c.intentSnap.Load().byID),
		EntityTypes:  c.entityTypes.Len(),
		Namespaces:   len(*c.namespaceConfigs.Load()),
	}
}
