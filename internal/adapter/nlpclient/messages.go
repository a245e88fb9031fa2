package nlpclient

import (
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/nlp"
)

// Procedures exposed by the engine.
const (
	EngineServiceName = "intentd.nlp.v1.EngineService"

	ClassifyIntentProcedure                 = "/" + EngineServiceName + "/ClassifyIntent"
	ExtractEntitiesProcedure                = "/" + EngineServiceName + "/ExtractEntities"
	EvaluateEntitiesProcedure               = "/" + EngineServiceName + "/EvaluateEntities"
	MergeValuesProcedure                    = "/" + EngineServiceName + "/MergeValues"
	UpdateIntentModelProcedure              = "/" + EngineServiceName + "/UpdateIntentModel"
	UpdateEntityModelForIntentProcedure     = "/" + EngineServiceName + "/UpdateEntityModelForIntent"
	UpdateEntityModelForEntityTypeProcedure = "/" + EngineServiceName + "/UpdateEntityModelForEntityType"
	DeleteOrphansProcedure                  = "/" + EngineServiceName + "/DeleteOrphans"
	BuiltInEntityTypesProcedure             = "/" + EngineServiceName + "/BuiltInEntityTypes"
	LoadDictionariesProcedure               = "/" + EngineServiceName + "/LoadDictionaries"
)

type EntityTypeMsg struct {
	Name        string      `json:"name"`
	SubEntities []EntityMsg `json:"sub_entities,omitempty"`
	Dictionary  bool        `json:"dictionary,omitempty"`
	Obfuscated  bool        `json:"obfuscated,omitempty"`
}

type EntityMsg struct {
	EntityType *EntityTypeMsg `json:"entity_type,omitempty"`
	Role       string         `json:"role"`
}

type IntentMsg struct {
	Name           string                                  `json:"name"`
	Entities       []EntityMsg                             `json:"entities,omitempty"`
	EntitiesRegexp map[entity.Locale][]entity.EntityRegexp `json:"entities_regexp,omitempty"`
}

type ApplicationMsg struct {
	Name             string          `json:"name"`
	Intents          []IntentMsg     `json:"intents"`
	SupportedLocales []entity.Locale `json:"supported_locales"`
}

type ReferenceDateMsg struct {
	Entity entity.EntityRef `json:"entity"`
	Date   time.Time        `json:"date"`
}

type CallMsg struct {
	Application           ApplicationMsg     `json:"application"`
	Language              entity.Locale      `json:"language"`
	EngineType            string             `json:"engine_type"`
	ReferenceDate         time.Time          `json:"reference_date"`
	ReferenceDateByEntity []ReferenceDateMsg `json:"reference_date_by_entity,omitempty"`
	ReferenceTimezone     string             `json:"reference_timezone"`
	EvaluationEnabled     bool               `json:"evaluation_enabled"`
}

type BuildMsg struct {
	Application          ApplicationMsg `json:"application"`
	Language             entity.Locale  `json:"language"`
	EngineType           string         `json:"engine_type"`
	OnlyIfModelNotExists bool           `json:"only_if_model_not_exists"`
	WholeNamespace       bool           `json:"whole_namespace"`
}

type SampleEntityMsg struct {
	Entity      EntityMsg         `json:"entity"`
	Start       int               `json:"start"`
	End         int               `json:"end"`
	SubEntities []SampleEntityMsg `json:"sub_entities,omitempty"`
}

type SampleMsg struct {
	Text     string            `json:"text"`
	Intent   string            `json:"intent"`
	Entities []SampleEntityMsg `json:"entities,omitempty"`
	Language entity.Locale     `json:"language"`
}

type RecognitionMsg struct {
	Entity      EntityMsg        `json:"entity"`
	Start       int              `json:"start"`
	End         int              `json:"end"`
	Probability float64          `json:"probability"`
	SubEntities []RecognitionMsg `json:"sub_entities,omitempty"`
}

type ClassifyIntentRequest struct {
	Call CallMsg `json:"call"`
	Text string  `json:"text"`
}

// ClassifyIntentResponse ranks every intent of the application model, best first.
type ClassifyIntentResponse struct {
	Intents []entity.IntentProbability `json:"intents"`
}

type ExtractEntitiesRequest struct {
	Call   CallMsg `json:"call"`
	Text   string  `json:"text"`
	Intent string  `json:"intent"`
}

type ExtractEntitiesResponse struct {
	Entities            []entity.ParsedEntityValue `json:"entities"`
	NotRetainedEntities []entity.ParsedEntityValue `json:"not_retained_entities"`
	EntitiesProbability float64                    `json:"entities_probability"`
}

type EvaluateEntitiesRequest struct {
	Call         CallMsg          `json:"call"`
	Text         string           `json:"text"`
	Recognitions []RecognitionMsg `json:"recognitions"`
}

type EvaluateEntitiesResponse struct {
	Values []entity.ParsedEntityValue `json:"values"`
}

type MergeValuesRequest struct {
	Call       CallMsg               `json:"call"`
	EntityType *EntityTypeMsg        `json:"entity_type"`
	Values     []entity.ValueToMerge `json:"values"`
}

type MergeValuesResponse struct {
	Value *entity.ValueToMerge `json:"value,omitempty"`
}

type UpdateModelRequest struct {
	Build      BuildMsg       `json:"build"`
	Intent     *IntentMsg     `json:"intent,omitempty"`
	EntityType *EntityTypeMsg `json:"entity_type,omitempty"`
	Samples    []SampleMsg    `json:"samples"`
}

type DeleteOrphansRequest struct {
	ApplicationsAndIntents map[string][]string `json:"applications_and_intents"`
	EntityTypes            []string            `json:"entity_types"`
}

type BuiltInEntityTypesResponse struct {
	Names []string `json:"names"`
}

type LoadDictionariesRequest struct {
	Dictionaries []entity.DictionaryData `json:"dictionaries"`
}

type Empty struct{}

// toEntityTypeMsg walks the resolved tree; the cache bounds its depth.
func toEntityTypeMsg(t *nlp.EntityType) *EntityTypeMsg {
	if t == nil {
		return nil
	}
	return &EntityTypeMsg{
		Name:        t.Name,
		SubEntities: lo.Map(t.SubEntities, func(e nlp.Entity, _ int) EntityMsg { return toEntityMsg(e) }),
		Dictionary:  t.Dictionary,
		Obfuscated:  t.Obfuscated,
	}
}

func toEntityMsg(e nlp.Entity) EntityMsg {
	return EntityMsg{EntityType: toEntityTypeMsg(e.EntityType), Role: e.Role}
}

func toIntentMsg(i nlp.Intent) IntentMsg {
	return IntentMsg{
		Name:           i.Name,
		Entities:       lo.Map(i.Entities, func(e nlp.Entity, _ int) EntityMsg { return toEntityMsg(e) }),
		EntitiesRegexp: i.EntitiesRegexp,
	}
}

func toApplicationMsg(a nlp.Application) ApplicationMsg {
	return ApplicationMsg{
		Name:             a.Name,
		Intents:          lo.Map(a.Intents, func(i nlp.Intent, _ int) IntentMsg { return toIntentMsg(i) }),
		SupportedLocales: a.SupportedLocales,
	}
}

func toCallMsg(c nlp.CallContext) CallMsg {
	msg := CallMsg{
		Application:       toApplicationMsg(c.Application),
		Language:          c.Language,
		EngineType:        c.EngineType,
		ReferenceDate:     c.Evaluation.ReferenceDate,
		EvaluationEnabled: c.EvaluationEnabled,
	}
	if c.Evaluation.ReferenceTimezone != nil {
		msg.ReferenceTimezone = c.Evaluation.ReferenceTimezone.String()
	}
	for ref, date := range c.Evaluation.ReferenceDateByEntity {
		msg.ReferenceDateByEntity = append(msg.ReferenceDateByEntity, ReferenceDateMsg{Entity: ref, Date: date})
	}
	return msg
}

func toBuildMsg(b nlp.BuildContext) BuildMsg {
	return BuildMsg{
		Application:          toApplicationMsg(b.Application),
		Language:             b.Language,
		EngineType:           b.EngineType,
		OnlyIfModelNotExists: b.OnlyIfModelNotExists,
		WholeNamespace:       b.WholeNamespace,
	}
}

func toSampleEntityMsg(e nlp.SampleEntity) SampleEntityMsg {
	return SampleEntityMsg{
		Entity:      toEntityMsg(e.Definition),
		Start:       e.Start,
		End:         e.End,
		SubEntities: lo.Map(e.SubEntities, func(s nlp.SampleEntity, _ int) SampleEntityMsg { return toSampleEntityMsg(s) }),
	}
}

func toSampleMsgs(samples []nlp.SampleExpression) []SampleMsg {
	return lo.Map(samples, func(s nlp.SampleExpression, _ int) SampleMsg {
		return SampleMsg{
			Text:     s.Text,
			Intent:   s.Intent.Name,
			Entities: lo.Map(s.Entities, func(e nlp.SampleEntity, _ int) SampleEntityMsg { return toSampleEntityMsg(e) }),
			Language: s.Language,
		}
	})
}

func toRecognitionMsg(r nlp.EntityRecognition) RecognitionMsg {
	return RecognitionMsg{
		Entity:      toEntityMsg(r.Definition),
		Start:       r.Start,
		End:         r.End,
		Probability: r.Probability,
		SubEntities: lo.Map(r.SubEntities, func(s nlp.EntityRecognition, _ int) RecognitionMsg { return toRecognitionMsg(s) }),
	}
}
