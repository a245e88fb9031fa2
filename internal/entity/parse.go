package entity

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// UnknownIntentName is the reserved intent returned when nothing matched confidently.
	UnknownIntentName = "unknown"
	// LowConfidenceThreshold is the probability at or below which registered sentences are stored as unknown.
	LowConfidenceThreshold = 0.1
)

// IntentQualifier restricts and biases classification toward one intent.
type IntentQualifier struct {
	// Intent is the qualified intent name.
	Intent string `json:"intent"`
	// Modifier is added to the intent probability when ranking.
	Modifier float64 `json:"modifier"`
}

// QueryContext carries per-request options.
type QueryContext struct {
	Language          Locale    `json:"language"`
	ClientID          string    `json:"client_id"`
	ClientDevice      string    `json:"client_device,omitempty"`
	DialogID          string    `json:"dialog_id,omitempty"`
	ReferenceDate     time.Time `json:"reference_date"`
	ReferenceTimezone string    `json:"reference_timezone,omitempty"`
	RegisterQuery     bool      `json:"register_query"`
	CheckConsistency  bool      `json:"check_consistency,omitempty"`
	EngineType        string    `json:"engine_type,omitempty"`
	EvaluationEnabled bool      `json:"evaluation_enabled"`
}

// Location resolves ReferenceTimezone, defaulting to UTC.
func (c QueryContext) Location() *time.Location {
	if c.ReferenceTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QueryState is the dialog state the request is made in.
type QueryState struct {
	States []string `json:"states,omitempty"`
}

// ParseQuery is a single classification request.
type ParseQuery struct {
	Namespace       string            `json:"namespace"`
	ApplicationName string            `json:"application_name"`
	Queries         []string          `json:"queries"`
	IntentsSubset   []IntentQualifier `json:"intents_subset,omitempty"`
	Context         QueryContext      `json:"context"`
	State           QueryState        `json:"state"`
}

// FirstQuery returns the first non-blank candidate text.
func (q *ParseQuery) FirstQuery() string {
	for _, text := range q.Queries {
		if NormalizeQuery(text) != "" {
			return text
		}
	}
	return ""
}

// ParsedEntityValue is an entity recognized in the query, possibly evaluated to a typed value.
type ParsedEntityValue struct {
	Start        int                 `json:"start"`
	End          int                 `json:"end"`
	Entity       EntityRef           `json:"entity"`
	Value        json.RawMessage     `json:"value,omitempty"`
	Evaluated    bool                `json:"evaluated"`
	SubEntities  []ParsedEntityValue `json:"sub_entities,omitempty"`
	Probability  float64             `json:"probability"`
	MergeSupport bool                `json:"merge_support"`
}

// ToClassified drops the evaluated value and keeps the span.
func (v ParsedEntityValue) ToClassified() ClassifiedEntity {
	subs := make([]ClassifiedEntity, 0, len(v.SubEntities))
	for _, s := range v.SubEntities {
		subs = append(subs, s.ToClassified())
	}
	if len(subs) == 0 {
		subs = nil
	}
	return ClassifiedEntity{Type: v.Entity.Type, Role: v.Entity.Role, Start: v.Start, End: v.End, SubEntities: subs}
}

// IntentProbability pairs an alternate intent with its score.
type IntentProbability struct {
	Intent      string  `json:"intent"`
	Probability float64 `json:"probability"`
}

// SortIntentProbabilities orders by descending probability, then by name.
func SortIntentProbabilities(in map[string]float64) []IntentProbability {
	out := make([]IntentProbability, 0, len(in))
	for intent, p := range in {
		out = append(out, IntentProbability{Intent: intent, Probability: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Intent < out[j].Intent
	})
	return out
}

// ParseResult is the outcome of one parse request.
type ParseResult struct {
	Intent                    string              `json:"intent"`
	IntentNamespace           string              `json:"intent_namespace"`
	Language                  Locale              `json:"language"`
	Entities                  []ParsedEntityValue `json:"entities"`
	NotRetainedEntities       []ParsedEntityValue `json:"not_retained_entities"`
	IntentProbability         float64             `json:"intent_probability"`
	EntitiesProbability       float64             `json:"entities_probability"`
	RetainedQuery             string              `json:"retained_query"`
	OtherIntentsProbabilities []IntentProbability `json:"other_intents_probabilities"`
}

// IsUnknown reports whether the result carries the reserved unknown intent.
func (r *ParseResult) IsUnknown() bool {
	return r.Intent == UnknownIntentName
}

// ValueToMerge is one candidate value in a merge request.
type ValueToMerge struct {
	Value   json.RawMessage `json:"value"`
	Content string          `json:"content,omitempty"`
	Initial bool            `json:"initial"`
	Date    time.Time       `json:"date"`
}

// ValuesMergeQuery asks the classifier to combine successive values of one entity.
type ValuesMergeQuery struct {
	Namespace       string         `json:"namespace"`
	ApplicationName string         `json:"application_name"`
	Context         QueryContext   `json:"context"`
	EntityType      string         `json:"entity_type"`
	EntityRole      string         `json:"entity_role"`
	Values          []ValueToMerge `json:"values"`
}

// ValuesMergeResult holds the merged value, if any.
type ValuesMergeResult struct {
	Value   json.RawMessage `json:"value,omitempty"`
	Content string          `json:"content,omitempty"`
}
