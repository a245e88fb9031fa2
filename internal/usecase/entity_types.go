package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
)

// MaxEntityTypeDepth bounds sub-entity tree materialization; deeper references are cut off.
const MaxEntityTypeDepth = 10

type entityTypeSnapshot struct {
	defs  map[string]entity.EntityTypeDefinition
	types map[string]*nlp.EntityType
}

// EntityTypeIndex resolves entity type names to runtime trees.
type EntityTypeIndex struct {
	repo   repository.EntityTypeRepository
	logger logrus.FieldLogger

	// writeMu serializes snapshot writers from store read to publish; readers never take it.
	writeMu  sync.Mutex
	snapshot atomic.Pointer[entityTypeSnapshot]
}

func NewEntityTypeIndex(repo repository.EntityTypeRepository, logger logrus.FieldLogger) *EntityTypeIndex {
	idx := &EntityTypeIndex{repo: repo, logger: logger.WithField("component", "entity_types")}
	idx.snapshot.Store(&entityTypeSnapshot{
		defs:  map[string]entity.EntityTypeDefinition{},
		types: map[string]*nlp.EntityType{},
	})
	return idx
}

// Refresh reloads every entity type and republishes the index.
func (x *EntityTypeIndex) Refresh(ctx context.Context) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	defs, err := x.repo.List(ctx)
	if err != nil {
		x.logger.WithError(err).Error("refresh entity types")
		return fmt.Errorf("list entity types: %w", err)
	}
	flat := make(map[string]entity.EntityTypeDefinition, len(defs))
	for _, def := range defs {
		flat[def.Name] = def
	}
	x.snapshot.Store(x.build(flat))
	x.logger.WithField("count", len(flat)).Debug("entity types refreshed")
	return nil
}

// build resolves every definition against the flat map so forward references between siblings work.
func (x *EntityTypeIndex) build(flat map[string]entity.EntityTypeDefinition) *entityTypeSnapshot {
	types := make(map[string]*nlp.EntityType, len(flat))
	for name, def := range flat {
		types[name] = x.materialize(flat, def, 0)
	}
	return &entityTypeSnapshot{defs: flat, types: types}
}

func (x *EntityTypeIndex) materialize(flat map[string]entity.EntityTypeDefinition, def entity.EntityTypeDefinition, depth int) *nlp.EntityType {
	out := &nlp.EntityType{Name: def.Name, Dictionary: def.Dictionary, Obfuscated: def.Obfuscated}
	if depth >= MaxEntityTypeDepth {
		return out
	}
	for _, sub := range def.SubEntities {
		subDef, ok := flat[sub.EntityTypeName]
		if !ok {
			x.logger.WithFields(logrus.Fields{"entity_type": def.Name, "sub_entity": sub.EntityTypeName}).
				Error("sub-entity type not found")
			continue
		}
		out.SubEntities = append(out.SubEntities, nlp.Entity{
			EntityType: x.materialize(flat, subDef, depth+1),
			Role:       sub.Role,
		})
	}
	return out
}

// ByName returns the definition, falling back to the store. Absence is logged and reported as nil.
func (x *EntityTypeIndex) ByName(ctx context.Context, name string) (*entity.EntityTypeDefinition, error) {
	if def, ok := x.snapshot.Load().defs[name]; ok {
		return &def, nil
	}
	def, err := x.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get entity type %s: %w", name, err)
	}
	if def == nil {
		x.logger.WithField("entity_type", name).Error("unknown entity type")
	}
	return def, nil
}

func (x *EntityTypeIndex) Exists(ctx context.Context, name string) bool {
	def, err := x.ByName(ctx, name)
	return err == nil && def != nil
}

// Resolve returns the cached runtime tree of a known type.
func (x *EntityTypeIndex) Resolve(name string) *nlp.EntityType {
	return x.snapshot.Load().types[name]
}

// ToEntityType materializes def against the current index.
func (x *EntityTypeIndex) ToEntityType(def *entity.EntityTypeDefinition) *nlp.EntityType {
	if def == nil {
		return nil
	}
	return x.materialize(x.snapshot.Load().defs, *def, 0)
}

// Add inserts a single definition without a full refresh. It reports false when the type is already known.
func (x *EntityTypeIndex) Add(def entity.EntityTypeDefinition) bool {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	current := x.snapshot.Load()
	if _, ok := current.defs[def.Name]; ok {
		return false
	}
	flat := make(map[string]entity.EntityTypeDefinition, len(current.defs)+1)
	for name, d := range current.defs {
		flat[name] = d
	}
	flat[def.Name] = def
	types := make(map[string]*nlp.EntityType, len(current.types)+1)
	for name, t := range current.types {
		types[name] = t
	}
	types[def.Name] = x.materialize(flat, def, 0)
	x.snapshot.Store(&entityTypeSnapshot{defs: flat, types: types})
	return true
}

// Names lists known entity type names in order.
func (x *EntityTypeIndex) Names() []string {
	defs := x.snapshot.Load().defs
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (x *EntityTypeIndex) Len() int {
	return len(x.snapshot.Load().defs)
}
