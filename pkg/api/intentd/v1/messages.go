// Package intentdv1 is the JSON wire contract of the intentd RPC services.
package intentdv1

import (
	"encoding/json"
	"time"
)

const (
	ParserServiceName   = "intentd.v1.ParserService"
	ModelServiceName    = "intentd.v1.ModelService"
	SentenceServiceName = "intentd.v1.SentenceService"

	ParserServiceParseProcedure           = "/" + ParserServiceName + "/Parse"
	ParserServiceMergeValuesProcedure     = "/" + ParserServiceName + "/MergeValues"
	ModelServiceTriggerBuildProcedure     = "/" + ModelServiceName + "/TriggerBuild"
	SentenceServiceListSentencesProcedure = "/" + SentenceServiceName + "/ListSentences"
)

type IntentQualifier struct {
	Intent   string  `json:"intent"`
	Modifier float64 `json:"modifier,omitempty"`
}

type QueryContext struct {
	Language          string     `json:"language,omitempty"`
	ClientID          string     `json:"client_id,omitempty"`
	ClientDevice      string     `json:"client_device,omitempty"`
	DialogID          string     `json:"dialog_id,omitempty"`
	ReferenceDate     *time.Time `json:"reference_date,omitempty"`
	ReferenceTimezone string     `json:"reference_timezone,omitempty"`
	RegisterQuery     bool       `json:"register_query,omitempty"`
	CheckConsistency  bool       `json:"check_consistency,omitempty"`
	EngineType        string     `json:"engine_type,omitempty"`
	// EvaluationDisabled skips entity value evaluation.
	EvaluationDisabled bool `json:"evaluation_disabled,omitempty"`
}

type ParseRequest struct {
	Namespace       string            `json:"namespace"`
	ApplicationName string            `json:"application_name"`
	Queries         []string          `json:"queries"`
	IntentsSubset   []IntentQualifier `json:"intents_subset,omitempty"`
	Context         QueryContext      `json:"context"`
	States          []string          `json:"states,omitempty"`
}

type EntityValue struct {
	Start        int             `json:"start"`
	End          int             `json:"end"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Value        json.RawMessage `json:"value,omitempty"`
	Evaluated    bool            `json:"evaluated"`
	SubEntities  []EntityValue   `json:"sub_entities,omitempty"`
	Probability  float64         `json:"probability"`
	MergeSupport bool            `json:"merge_support"`
}

type IntentProbability struct {
	Intent      string  `json:"intent"`
	Probability float64 `json:"probability"`
}

type ParseResponse struct {
	Intent                    string              `json:"intent"`
	IntentNamespace           string              `json:"intent_namespace"`
	Language                  string              `json:"language"`
	Entities                  []EntityValue       `json:"entities"`
	NotRetainedEntities       []EntityValue       `json:"not_retained_entities"`
	IntentProbability         float64             `json:"intent_probability"`
	EntitiesProbability       float64             `json:"entities_probability"`
	RetainedQuery             string              `json:"retained_query"`
	OtherIntentsProbabilities []IntentProbability `json:"other_intents_probabilities"`
}

type ValueToMerge struct {
	Value   json.RawMessage `json:"value"`
	Content string          `json:"content,omitempty"`
	Initial bool            `json:"initial,omitempty"`
	Date    time.Time       `json:"date"`
}

type MergeValuesRequest struct {
	Namespace       string         `json:"namespace"`
	ApplicationName string         `json:"application_name"`
	Context         QueryContext   `json:"context"`
	EntityType      string         `json:"entity_type"`
	EntityRole      string         `json:"entity_role"`
	Values          []ValueToMerge `json:"values"`
}

type MergeValuesResponse struct {
	Value   json.RawMessage `json:"value,omitempty"`
	Content string          `json:"content,omitempty"`
}

type TriggerBuildRequest struct {
	Namespace       string `json:"namespace"`
	ApplicationName string `json:"application_name"`
	// Language limits the build to one locale; empty builds every supported locale.
	Language string `json:"language,omitempty"`
}

type TriggerBuildResponse struct {
	TriggerID     string    `json:"trigger_id"`
	ApplicationID string    `json:"application_id"`
	Language      string    `json:"language,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaginationRequest struct {
	PageNo   int32 `json:"page_no"`
	PageSize int32 `json:"page_size"`
}

type PaginationResponse struct {
	PageNo   int32 `json:"page_no"`
	PageSize int32 `json:"page_size"`
	Total    int64 `json:"total"`
}

type ListSentencesRequest struct {
	Namespace       string             `json:"namespace"`
	ApplicationName string             `json:"application_name"`
	Pagination      *PaginationRequest `json:"pagination,omitempty"`
	// Filter is a CEL expression, e.g. status == 'validated' && text.startsWith('send').
	Filter  string `json:"filter,omitempty"`
	OrderBy string `json:"order_by,omitempty"`
}

type SentenceEntity struct {
	Type        string           `json:"type"`
	Role        string           `json:"role"`
	Start       int              `json:"start"`
	End         int              `json:"end"`
	SubEntities []SentenceEntity `json:"sub_entities,omitempty"`
}

type Sentence struct {
	Text                  string           `json:"text"`
	Language              string           `json:"language"`
	ApplicationID         string           `json:"application_id"`
	IntentID              string           `json:"intent_id"`
	Entities              []SentenceEntity `json:"entities"`
	Status                string           `json:"status"`
	LastIntentProbability float64          `json:"last_intent_probability"`
	LastEntityProbability float64          `json:"last_entity_probability"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

type ListSentencesResponse struct {
	Sentences  []Sentence         `json:"sentences"`
	Pagination PaginationResponse `json:"pagination"`
}

// GetPageNo and GetPageSize tolerate a nil receiver like generated getters do.
func (p *PaginationRequest) GetPageNo() int32 {
	if p == nil {
		return 0
	}
	return p.PageNo
}

func (p *PaginationRequest) GetPageSize() int32 {
	if p == nil {
		return 0
	}
	return p.PageSize
}

func (r *ListSentencesRequest) GetFilter() string  { return r.Filter }
func (r *ListSentencesRequest) GetOrderBy() string { return r.OrderBy }
