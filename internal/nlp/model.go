// Package nlp defines the contract between the classifier core and the statistical engine.
package nlp

import (
	"time"

	"github.com/eslsoft/intentd/internal/entity"
)

// EntityType is the runtime form of an entity type with its sub-entity tree resolved.
type EntityType struct {
	Name        string
	SubEntities []Entity
	Dictionary  bool
	Obfuscated  bool
}

// Depth returns the height of the resolved sub-entity tree.
func (t *EntityType) Depth() int {
	if t == nil {
		return 0
	}
	deepest := 0
	for _, sub := range t.SubEntities {
		if d := sub.EntityType.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Entity is a typed role inside an intent or a parent entity type.
type Entity struct {
	EntityType *EntityType
	Role       string
}

func (e Entity) Ref() entity.EntityRef {
	if e.EntityType == nil {
		return entity.EntityRef{Role: e.Role}
	}
	return entity.EntityRef{Type: e.EntityType.Name, Role: e.Role}
}

// Intent is the runtime form of an intent.
type Intent struct {
	// Name is qualified: namespace:name.
	Name           string
	Entities       []Entity
	EntitiesRegexp map[entity.Locale][]entity.EntityRegexp
}

// HasEntity reports whether the intent declares the given (type, role).
func (i Intent) HasEntity(ref entity.EntityRef) bool {
	for _, e := range i.Entities {
		if e.Ref() == ref {
			return true
		}
	}
	return false
}

// Application is the runtime form of an application.
type Application struct {
	// Name is qualified: namespace:name.
	Name             string
	Intents          []Intent
	SupportedLocales []entity.Locale
}

// EvaluationContext carries what date-relative entity evaluation needs.
type EvaluationContext struct {
	ReferenceDate         time.Time
	ReferenceDateByEntity map[entity.EntityRef]time.Time
	ReferenceTimezone     *time.Location
}

// CallContext is passed to every request-time classifier call.
type CallContext struct {
	Application       Application
	Language          entity.Locale
	EngineType        string
	Evaluation        EvaluationContext
	EvaluationEnabled bool
}

// BuildContext is passed to every model build.
type BuildContext struct {
	Application          Application
	Language             entity.Locale
	EngineType           string
	OnlyIfModelNotExists bool
	// WholeNamespace widens entity-type builds to every application of the namespace.
	WholeNamespace bool
}

// SampleEntity is an entity occurrence in a training sample.
type SampleEntity struct {
	Definition  Entity
	Start       int
	End         int
	SubEntities []SampleEntity
}

// SampleExpression is one training sample.
type SampleExpression struct {
	Text     string
	Intent   Intent
	Entities []SampleEntity
	Language entity.Locale
}

// EntityRecognition is a known entity span submitted for evaluation.
type EntityRecognition struct {
	Definition  Entity
	Start       int
	End         int
	Probability float64
	SubEntities []EntityRecognition
}

// ParseOutput is the raw classifier answer for one text.
type ParseOutput struct {
	// Intent is the qualified name of the winning intent.
	Intent              string
	IntentProbability   float64
	Entities            []entity.ParsedEntityValue
	NotRetainedEntities []entity.ParsedEntityValue
	EntitiesProbability float64
	OtherIntents        map[string]float64
}

// OrphanFilter lists what must be kept when pruning stored models.
type OrphanFilter struct {
	// ApplicationsAndIntents maps qualified application names to their qualified intent names.
	ApplicationsAndIntents map[string][]string
	EntityTypes            []string
}
