package usecase

import (
	"context"
	"testing"

	"github.com/eslsoft/intentd/internal/entity"
)

func newIndex(t *testing.T, defs ...entity.EntityTypeDefinition) *EntityTypeIndex {
	t.Helper()
	idx := NewEntityTypeIndex(fakeEntityTypeRepo{&fakeStore{entityTypes: defs}}, quietLogger())
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	return idx
}

func TestEntityTypeIndex_CycleTerminatesAtDepthCap(t *testing.T) {
	idx := newIndex(t,
		entity.EntityTypeDefinition{Name: "a:x", SubEntities: []entity.EntityDefinition{{EntityTypeName: "a:y", Role: "y"}}},
		entity.EntityTypeDefinition{Name: "a:y", SubEntities: []entity.EntityDefinition{{EntityTypeName: "a:x", Role: "x"}}},
		entity.EntityTypeDefinition{Name: "a:self", SubEntities: []entity.EntityDefinition{{EntityTypeName: "a:self", Role: "me"}}},
	)
	for _, name := range []string{"a:x", "a:y", "a:self"} {
		tree := idx.Resolve(name)
		if tree == nil {
			t.Fatalf("expected %s to resolve", name)
		}
		if d := tree.Depth(); d != MaxEntityTypeDepth+1 {
			t.Fatalf("expected %s depth %d, got %d", name, MaxEntityTypeDepth+1, d)
		}
	}
}

func TestEntityTypeIndex_ResolvesForwardReferences(t *testing.T) {
	idx := newIndex(t,
		entity.EntityTypeDefinition{Name: "a:trip", SubEntities: []entity.EntityDefinition{
			{EntityTypeName: "a:city", Role: "from"},
			{EntityTypeName: "a:city", Role: "to"},
			{EntityTypeName: "a:missing", Role: "nope"},
		}},
		entity.EntityTypeDefinition{Name: "a:city", Dictionary: true},
	)
	trip := idx.Resolve("a:trip")
	if len(trip.SubEntities) != 2 {
		t.Fatalf("expected missing sub-entity to be skipped, got %d", len(trip.SubEntities))
	}
	if trip.SubEntities[0].EntityType.Name != "a:city" || !trip.SubEntities[0].EntityType.Dictionary {
		t.Fatalf("unexpected sub-entity %+v", trip.SubEntities[0].EntityType)
	}
	if trip.SubEntities[1].Role != "to" {
		t.Fatalf("unexpected role %s", trip.SubEntities[1].Role)
	}
}

func TestEntityTypeIndex_AddIsNoOpWhenPresent(t *testing.T) {
	idx := newIndex(t, entity.EntityTypeDefinition{Name: "a:city", Description: "cities"})
	if idx.Add(entity.EntityTypeDefinition{Name: "a:city", Description: "other"}) {
		t.Fatalf("expected duplicate add to be refused")
	}
	def, _ := idx.ByName(context.Background(), "a:city")
	if def.Description != "cities" {
		t.Fatalf("expected original definition to be kept, got %q", def.Description)
	}
	if !idx.Add(entity.EntityTypeDefinition{Name: "a:street"}) {
		t.Fatalf("expected new type to be added")
	}
	if idx.Len() != 2 || idx.Resolve("a:street") == nil {
		t.Fatalf("expected new type to be visible")
	}
}

func TestEntityTypeIndex_MissingTypeIsAbsent(t *testing.T) {
	idx := newIndex(t)
	def, err := idx.ByName(context.Background(), "a:ghost")
	if err != nil || def != nil {
		t.Fatalf("expected absent type, got %v %v", def, err)
	}
	if idx.Exists(context.Background(), "a:ghost") {
		t.Fatalf("expected Exists to be false")
	}
}
