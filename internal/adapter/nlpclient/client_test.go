package nlpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/nlp"
)

type stubSelector struct {
	eligible map[string]bool
	others   map[string]float64
}

func (s *stubSelector) IsEligible(intent string) bool { return s.eligible[intent] }

func (s *stubSelector) SelectIntent(ranked []entity.IntentProbability) (string, float64, bool) {
	var best *entity.IntentProbability
	for i := range ranked {
		if !s.eligible[ranked[i].Intent] {
			continue
		}
		if best == nil {
			best = &ranked[i]
			continue
		}
		s.AddOtherIntent(ranked[i].Intent, ranked[i].Probability)
	}
	if best == nil {
		return "", 0, false
	}
	return best.Intent, best.Probability, true
}

func (s *stubSelector) OtherIntents() map[string]float64 { return s.others }

func (s *stubSelector) AddOtherIntent(intent string, probability float64) {
	s.others[intent] = probability
}

type fakeEngine struct {
	ranked      []entity.IntentProbability
	extractedBy []string
	lastCall    CallMsg
	dictionary  []entity.DictionaryData
}

func (e *fakeEngine) handler() http.Handler {
	opts := connect.WithCodec(mapping.JSONCodec{})
	mux := http.NewServeMux()
	mux.Handle(ClassifyIntentProcedure, connect.NewUnaryHandler(ClassifyIntentProcedure,
		func(_ context.Context, req *connect.Request[ClassifyIntentRequest]) (*connect.Response[ClassifyIntentResponse], error) {
			e.lastCall = req.Msg.Call
			return connect.NewResponse(&ClassifyIntentResponse{Intents: e.ranked}), nil
		}, opts))
	mux.Handle(ExtractEntitiesProcedure, connect.NewUnaryHandler(ExtractEntitiesProcedure,
		func(_ context.Context, req *connect.Request[ExtractEntitiesRequest]) (*connect.Response[ExtractEntitiesResponse], error) {
			e.extractedBy = append(e.extractedBy, req.Msg.Intent)
			return connect.NewResponse(&ExtractEntitiesResponse{
				Entities: []entity.ParsedEntityValue{{
					Start: 5, End: 7, Entity: entity.EntityRef{Type: "acme:amount", Role: "amount"},
					Value: json.RawMessage(`{"value":10}`), Evaluated: true, Probability: 0.8,
				}},
				EntitiesProbability: 0.8,
			}), nil
		}, opts))
	mux.Handle(BuiltInEntityTypesProcedure, connect.NewUnaryHandler(BuiltInEntityTypesProcedure,
		func(context.Context, *connect.Request[Empty]) (*connect.Response[BuiltInEntityTypesResponse], error) {
			return connect.NewResponse(&BuiltInEntityTypesResponse{Names: []string{"duckling:datetime"}}), nil
		}, opts))
	mux.Handle(LoadDictionariesProcedure, connect.NewUnaryHandler(LoadDictionariesProcedure,
		func(_ context.Context, req *connect.Request[LoadDictionariesRequest]) (*connect.Response[Empty], error) {
			e.dictionary = req.Msg.Dictionaries
			return connect.NewResponse(&Empty{}), nil
		}, opts))
	mux.Handle(DeleteOrphansProcedure, connect.NewUnaryHandler(DeleteOrphansProcedure,
		func(context.Context, *connect.Request[DeleteOrphansRequest]) (*connect.Response[Empty], error) {
			return nil, connect.NewError(connect.CodeUnavailable, errors.New("engine down"))
		}, opts))
	return mux
}

func newTestClient(t *testing.T, engine *fakeEngine) *Client {
	t.Helper()
	srv := httptest.NewServer(engine.handler())
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewWithHTTPClient(srv.Client(), srv.URL+"/", logger)
}

func testCall() nlp.CallContext {
	when := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return nlp.CallContext{
		Application: nlp.Application{Name: "acme:bank", SupportedLocales: []entity.Locale{entity.LocaleEnglish}},
		Language:    entity.LocaleEnglish,
		EngineType:  "default",
		Evaluation: nlp.EvaluationContext{
			ReferenceDate:         when,
			ReferenceDateByEntity: map[entity.EntityRef]time.Time{{Type: "duckling:datetime", Role: "when"}: when},
			ReferenceTimezone:     time.UTC,
		},
		EvaluationEnabled: true,
	}
}

func TestClient_ParseSelectsEligibleIntent(t *testing.T) {
	engine := &fakeEngine{ranked: []entity.IntentProbability{
		{Intent: "acme:greet", Probability: 0.9},
		{Intent: "acme:transfer", Probability: 0.7},
		{Intent: "acme:balance", Probability: 0.2},
	}}
	client := newTestClient(t, engine)
	selector := &stubSelector{
		eligible: map[string]bool{"acme:transfer": true, "acme:balance": true},
		others:   map[string]float64{},
	}

	out, err := client.Parse(context.Background(), testCall(), "send 10 euros", selector)
	require.NoError(t, err)
	assert.Equal(t, "acme:transfer", out.Intent)
	assert.InDelta(t, 0.7, out.IntentProbability, 1e-9)
	require.Len(t, out.Entities, 1)
	assert.JSONEq(t, `{"value":10}`, string(out.Entities[0].Value))
	assert.Equal(t, map[string]float64{"acme:balance": 0.2}, out.OtherIntents)
	assert.Equal(t, []string{"acme:transfer"}, engine.extractedBy)

	assert.Equal(t, "UTC", engine.lastCall.ReferenceTimezone)
	require.Len(t, engine.lastCall.ReferenceDateByEntity, 1)
	assert.Equal(t, "when", engine.lastCall.ReferenceDateByEntity[0].Entity.Role)
}

func TestClient_ParseWithoutEligibleIntentIsUnknown(t *testing.T) {
	engine := &fakeEngine{ranked: []entity.IntentProbability{{Intent: "acme:greet", Probability: 0.9}}}
	client := newTestClient(t, engine)

	out, err := client.Parse(context.Background(), testCall(), "hello", &stubSelector{others: map[string]float64{}})
	require.NoError(t, err)
	assert.Equal(t, entity.UnknownIntentName, out.Intent)
	assert.Empty(t, engine.extractedBy, "entities are not extracted for unknown")
}

func TestClient_Dictionaries(t *testing.T) {
	engine := &fakeEngine{}
	client := newTestClient(t, engine)
	ctx := context.Background()

	names, err := client.BuiltInEntityTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"duckling:datetime"}, names)

	require.NoError(t, client.LoadDictionaries(ctx, []entity.DictionaryData{{
		Namespace: "acme", EntityName: "city",
		Values: []entity.DictionaryValue{{Value: "paris", Labels: map[entity.Locale][]string{entity.LocaleFrench: {"Paris"}}}},
	}}))
	require.Len(t, engine.dictionary, 1)
	assert.Equal(t, []string{"Paris"}, engine.dictionary[0].Values[0].Labels[entity.LocaleFrench])
}

func TestClient_PropagatesEngineErrors(t *testing.T) {
	client := newTestClient(t, &fakeEngine{})

	err := client.DeleteOrphans(context.Background(), nlp.OrphanFilter{EntityTypes: []string{"acme:city"}})
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}
