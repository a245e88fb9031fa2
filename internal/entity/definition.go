package entity

import (
	"strings"

	"github.com/samber/lo"
)

// QualifiedName joins a namespace and a name the way definitions are referenced across namespaces.
func QualifiedName(namespace, name string) string {
	return namespace + ":" + name
}

// SplitQualifiedName is the inverse of QualifiedName. Unqualified names get an empty namespace.
func SplitQualifiedName(qualified string) (namespace, name string) {
	if idx := strings.Index(qualified, ":"); idx >= 0 {
		return qualified[:idx], qualified[idx+1:]
	}
	return "", qualified
}

// ApplicationDefinition is the stored description of a bot application.
type ApplicationDefinition struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	// Intents holds the ids of the intents the application classifies.
	Intents []string `json:"intents"`
	// IntentStatesByIntent restricts, per intent id, the dialog states in which the intent may be returned.
	IntentStatesByIntent   map[string][]string `json:"intent_states,omitempty"`
	SupportedLocales       []Locale            `json:"supported_locales"`
	EngineType             string              `json:"engine_type"`
	UnknownIntentThreshold float64             `json:"unknown_intent_threshold"`
	NormalizeText          bool                `json:"normalize_text"`
}

func (a *ApplicationDefinition) QualifiedName() string {
	return QualifiedName(a.Namespace, a.Name)
}

func (a *ApplicationDefinition) SupportsLocale(l Locale) bool {
	return lo.Contains(a.SupportedLocales, l)
}

func (a *ApplicationDefinition) HasIntent(intentID string) bool {
	return lo.Contains(a.Intents, intentID)
}

// EntityDefinition references an entity type from an intent or from a parent entity type.
type EntityDefinition struct {
	EntityTypeName string `json:"entity_type_name"`
	Role           string `json:"role"`
	// AtStartOfDay asks the evaluator to resolve relative dates against midnight instead of "now".
	AtStartOfDay bool `json:"at_start_of_day,omitempty"`
}

// Ref returns the comparable identity of the definition.
func (e EntityDefinition) Ref() EntityRef {
	return EntityRef{Type: e.EntityTypeName, Role: e.Role}
}

// EntityRegexp is a locale-specific rule mapping a regexp match to entities.
type EntityRegexp struct {
	Regexp string `json:"regexp"`
}

// IntentDefinition is the stored description of an intent.
type IntentDefinition struct {
	ID             string                    `json:"id"`
	Namespace      string                    `json:"namespace"`
	Name           string                    `json:"name"`
	Label          string                    `json:"label,omitempty"`
	Entities       []EntityDefinition        `json:"entities"`
	EntitiesRegexp map[Locale][]EntityRegexp `json:"entities_regexp,omitempty"`
	ApplicationIDs []string                  `json:"application_ids"`
	// SharedIntents are ids of intents whose training sentences also train this intent's entity model.
	SharedIntents []string `json:"shared_intents,omitempty"`
	// MandatoryStates lists the dialog states the intent needs; empty means any state.
	MandatoryStates []string `json:"mandatory_states,omitempty"`
}

func (i *IntentDefinition) QualifiedName() string {
	return QualifiedName(i.Namespace, i.Name)
}

// SupportsStates reports whether the intent may be selected for a request carrying the given states.
func (i *IntentDefinition) SupportsStates(states []string) bool {
	if len(i.MandatoryStates) == 0 {
		return true
	}
	return lo.Some(i.MandatoryStates, states)
}

// HasEntity reports whether the intent declares the (type, role) pair.
func (i *IntentDefinition) HasEntity(ref EntityRef) bool {
	return lo.ContainsBy(i.Entities, func(e EntityDefinition) bool { return e.Ref() == ref })
}

// EntityTypeDefinition is the stored description of an entity type.
type EntityTypeDefinition struct {
	// Name is qualified: namespace:name.
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Dictionary  bool               `json:"dictionary"`
	Obfuscated  bool               `json:"obfuscated"`
	SubEntities []EntityDefinition `json:"sub_entities,omitempty"`
}

func (e *EntityTypeDefinition) Namespace() string {
	ns, _ := SplitQualifiedName(e.Name)
	return ns
}

// NamespaceImport declares that a namespace consumes another namespace's data.
type NamespaceImport struct {
	Namespace string `json:"namespace"`
	// Model shares the imported namespace's intents for classification.
	Model bool `json:"model"`
}

// NamespaceConfiguration holds the sharing options of one namespace.
type NamespaceConfiguration struct {
	Namespace string            `json:"namespace"`
	Imports   []NamespaceImport `json:"imports"`
}

// ModelSharedNamespaces returns the namespaces imported with Model enabled.
func (c *NamespaceConfiguration) ModelSharedNamespaces() []string {
	return lo.FilterMap(c.Imports, func(imp NamespaceImport, _ int) (string, bool) {
		return imp.Namespace, imp.Model && imp.Namespace != c.Namespace
	})
}

// DictionaryValue is one entry of a dictionary entity type.
type DictionaryValue struct {
	Value  string              `json:"value"`
	Labels map[Locale][]string `json:"labels"`
}

// DictionaryData holds the predefined values of a dictionary entity type.
type DictionaryData struct {
	Namespace   string            `json:"namespace"`
	EntityName  string            `json:"entity_name"`
	Values      []DictionaryValue `json:"values"`
	OnlyValues  bool              `json:"only_values"`
	MinDistance float64           `json:"min_distance"`
}

func (d *DictionaryData) QualifiedName() string {
	return QualifiedName(d.Namespace, d.EntityName)
}
