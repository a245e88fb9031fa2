// Package nlpclient talks to the remote statistical engine over connect.
package nlpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/nlp"
)

var _ nlp.Classifier = (*Client)(nil)

// Client implements nlp.Classifier against the engine service.
// Intent selection runs locally on the ranked intents the engine returns.
type Client struct {
	classifyIntent       *connect.Client[ClassifyIntentRequest, ClassifyIntentResponse]
	extractEntities      *connect.Client[ExtractEntitiesRequest, ExtractEntitiesResponse]
	evaluateEntities     *connect.Client[EvaluateEntitiesRequest, EvaluateEntitiesResponse]
	mergeValues          *connect.Client[MergeValuesRequest, MergeValuesResponse]
	updateIntentModel    *connect.Client[UpdateModelRequest, Empty]
	updateIntentEntities *connect.Client[UpdateModelRequest, Empty]
	updateEntityType     *connect.Client[UpdateModelRequest, Empty]
	deleteOrphans        *connect.Client[DeleteOrphansRequest, Empty]
	builtInEntityTypes   *connect.Client[Empty, BuiltInEntityTypesResponse]
	loadDictionaries     *connect.Client[LoadDictionariesRequest, Empty]
	logger               logrus.FieldLogger
}

// New builds a client for cfg.NLP.EngineURL.
func New(cfg *config.Config, logger logrus.FieldLogger) *Client {
	return NewWithHTTPClient(&http.Client{Timeout: cfg.NLP.Timeout}, cfg.NLP.EngineURL, logger)
}

func NewWithHTTPClient(httpClient connect.HTTPClient, baseURL string, logger logrus.FieldLogger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts := []connect.ClientOption{connect.WithCodec(mapping.JSONCodec{})}
	return &Client{
		classifyIntent:       connect.NewClient[ClassifyIntentRequest, ClassifyIntentResponse](httpClient, baseURL+ClassifyIntentProcedure, opts...),
		extractEntities:      connect.NewClient[ExtractEntitiesRequest, ExtractEntitiesResponse](httpClient, baseURL+ExtractEntitiesProcedure, opts...),
		evaluateEntities:     connect.NewClient[EvaluateEntitiesRequest, EvaluateEntitiesResponse](httpClient, baseURL+EvaluateEntitiesProcedure, opts...),
		mergeValues:          connect.NewClient[MergeValuesRequest, MergeValuesResponse](httpClient, baseURL+MergeValuesProcedure, opts...),
		updateIntentModel:    connect.NewClient[UpdateModelRequest, Empty](httpClient, baseURL+UpdateIntentModelProcedure, opts...),
		updateIntentEntities: connect.NewClient[UpdateModelRequest, Empty](httpClient, baseURL+UpdateEntityModelForIntentProcedure, opts...),
		updateEntityType:     connect.NewClient[UpdateModelRequest, Empty](httpClient, baseURL+UpdateEntityModelForEntityTypeProcedure, opts...),
		deleteOrphans:        connect.NewClient[DeleteOrphansRequest, Empty](httpClient, baseURL+DeleteOrphansProcedure, opts...),
		builtInEntityTypes:   connect.NewClient[Empty, BuiltInEntityTypesResponse](httpClient, baseURL+BuiltInEntityTypesProcedure, opts...),
		loadDictionaries:     connect.NewClient[LoadDictionariesRequest, Empty](httpClient, baseURL+LoadDictionariesProcedure, opts...),
		logger:               logger.WithField("component", "nlp_client"),
	}
}

// Parse ranks intents remotely, picks the winner with the selector, then extracts its entities.
// When no ranked intent is eligible the output carries the unknown intent.
func (c *Client) Parse(ctx context.Context, call nlp.CallContext, text string, selector nlp.IntentSelector) (*nlp.ParseOutput, error) {
	callMsg := toCallMsg(call)
	ranked, err := c.classifyIntent.CallUnary(ctx, connect.NewRequest(&ClassifyIntentRequest{Call: callMsg, Text: text}))
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}

	intent, probability, ok := selector.SelectIntent(ranked.Msg.Intents)
	if !ok {
		c.logger.WithFields(logrus.Fields{"app": call.Application.Name, "ranked": len(ranked.Msg.Intents)}).
			Debug("no eligible intent")
		return &nlp.ParseOutput{
			Intent:              entity.UnknownIntentName,
			IntentProbability:   1.0,
			EntitiesProbability: 1.0,
			OtherIntents:        selector.OtherIntents(),
		}, nil
	}

	extracted, err := c.extractEntities.CallUnary(ctx, connect.NewRequest(&ExtractEntitiesRequest{Call: callMsg, Text: text, Intent: intent}))
	if err != nil {
		return nil, fmt.Errorf("extract entities for %s: %w", intent, err)
	}
	return &nlp.ParseOutput{
		Intent:              intent,
		IntentProbability:   probability,
		Entities:            extracted.Msg.Entities,
		NotRetainedEntities: extracted.Msg.NotRetainedEntities,
		EntitiesProbability: extracted.Msg.EntitiesProbability,
		OtherIntents:        selector.OtherIntents(),
	}, nil
}

func (c *Client) EvaluateEntities(ctx context.Context, call nlp.CallContext, text string, recognitions []nlp.EntityRecognition) ([]entity.ParsedEntityValue, error) {
	res, err := c.evaluateEntities.CallUnary(ctx, connect.NewRequest(&EvaluateEntitiesRequest{
		Call:         toCallMsg(call),
		Text:         text,
		Recognitions: lo.Map(recognitions, func(r nlp.EntityRecognition, _ int) RecognitionMsg { return toRecognitionMsg(r) }),
	}))
	if err != nil {
		return nil, fmt.Errorf("evaluate entities: %w", err)
	}
	return res.Msg.Values, nil
}

func (c *Client) MergeValues(ctx context.Context, call nlp.CallContext, entityType *nlp.EntityType, values []entity.ValueToMerge) (*entity.ValueToMerge, error) {
	res, err := c.mergeValues.CallUnary(ctx, connect.NewRequest(&MergeValuesRequest{
		Call:       toCallMsg(call),
		EntityType: toEntityTypeMsg(entityType),
		Values:     values,
	}))
	if err != nil {
		return nil, fmt.Errorf("merge values: %w", err)
	}
	return res.Msg.Value, nil
}

func (c *Client) UpdateIntentModel(ctx context.Context, build nlp.BuildContext, samples []nlp.SampleExpression) error {
	_, err := c.updateIntentModel.CallUnary(ctx, connect.NewRequest(&UpdateModelRequest{
		Build:   toBuildMsg(build),
		Samples: toSampleMsgs(samples),
	}))
	if err != nil {
		return fmt.Errorf("update intent model: %w", err)
	}
	return nil
}

func (c *Client) UpdateEntityModelForIntent(ctx context.Context, build nlp.BuildContext, intent nlp.Intent, samples []nlp.SampleExpression) error {
	msg := toIntentMsg(intent)
	_, err := c.updateIntentEntities.CallUnary(ctx, connect.NewRequest(&UpdateModelRequest{
		Build:   toBuildMsg(build),
		Intent:  &msg,
		Samples: toSampleMsgs(samples),
	}))
	if err != nil {
		return fmt.Errorf("update entity model for intent %s: %w", intent.Name, err)
	}
	return nil
}

func (c *Client) UpdateEntityModelForEntityType(ctx context.Context, build nlp.BuildContext, entityType *nlp.EntityType, samples []nlp.SampleExpression) error {
	_, err := c.updateEntityType.CallUnary(ctx, connect.NewRequest(&UpdateModelRequest{
		Build:      toBuildMsg(build),
		EntityType: toEntityTypeMsg(entityType),
		Samples:    toSampleMsgs(samples),
	}))
	if err != nil {
		return fmt.Errorf("update entity model for entity type: %w", err)
	}
	return nil
}

func (c *Client) DeleteOrphans(ctx context.Context, filter nlp.OrphanFilter) error {
	_, err := c.deleteOrphans.CallUnary(ctx, connect.NewRequest(&DeleteOrphansRequest{
		ApplicationsAndIntents: filter.ApplicationsAndIntents,
		EntityTypes:            filter.EntityTypes,
	}))
	if err != nil {
		return fmt.Errorf("delete orphans: %w", err)
	}
	return nil
}

func (c *Client) BuiltInEntityTypes(ctx context.Context) ([]string, error) {
	res, err := c.builtInEntityTypes.CallUnary(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return nil, fmt.Errorf("built-in entity types: %w", err)
	}
	return res.Msg.Names, nil
}

func (c *Client) LoadDictionaries(ctx context.Context, dictionaries []entity.DictionaryData) error {
	_, err := c.loadDictionaries.CallUnary(ctx, connect.NewRequest(&LoadDictionariesRequest{Dictionaries: dictionaries}))
	if err != nil {
		return fmt.Errorf("load dictionaries: %w", err)
	}
	return nil
}
