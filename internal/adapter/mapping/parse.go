package mapping

import (
	"strings"

	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/entity"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

func FromPbQueryContext(in intentdv1.QueryContext) entity.QueryContext {
	qc := entity.QueryContext{
		Language:          entity.ParseLocale(in.Language),
		ClientID:          strings.TrimSpace(in.ClientID),
		ClientDevice:      strings.TrimSpace(in.ClientDevice),
		DialogID:          strings.TrimSpace(in.DialogID),
		ReferenceTimezone: strings.TrimSpace(in.ReferenceTimezone),
		RegisterQuery:     in.RegisterQuery,
		CheckConsistency:  in.CheckConsistency,
		EngineType:        strings.TrimSpace(in.EngineType),
		EvaluationEnabled: !in.EvaluationDisabled,
	}
	if in.ReferenceDate != nil {
		qc.ReferenceDate = *in.ReferenceDate
	}
	return qc
}

func FromPbParseRequest(in *intentdv1.ParseRequest) *entity.ParseQuery {
	return &entity.ParseQuery{
		Namespace:       strings.TrimSpace(in.Namespace),
		ApplicationName: strings.TrimSpace(in.ApplicationName),
		Queries:         in.Queries,
		IntentsSubset: lo.Map(in.IntentsSubset, func(q intentdv1.IntentQualifier, _ int) entity.IntentQualifier {
			return entity.IntentQualifier{Intent: strings.TrimSpace(q.Intent), Modifier: q.Modifier}
		}),
		Context: FromPbQueryContext(in.Context),
		State: entity.QueryState{States: lo.FilterMap(in.States, func(s string, _ int) (string, bool) {
			s = strings.TrimSpace(s)
			return s, s != ""
		})},
	}
}

func ToPbEntityValue(in entity.ParsedEntityValue) intentdv1.EntityValue {
	return intentdv1.EntityValue{
		Start:        in.Start,
		End:          in.End,
		Type:         in.Entity.Type,
		Role:         in.Entity.Role,
		Value:        in.Value,
		Evaluated:    in.Evaluated,
		SubEntities:  lo.Map(in.SubEntities, func(s entity.ParsedEntityValue, _ int) intentdv1.EntityValue { return ToPbEntityValue(s) }),
		Probability:  in.Probability,
		MergeSupport: in.MergeSupport,
	}
}

func toPbEntityValues(in []entity.ParsedEntityValue) []intentdv1.EntityValue {
	return lo.Map(in, func(v entity.ParsedEntityValue, _ int) intentdv1.EntityValue { return ToPbEntityValue(v) })
}

func ToPbParseResponse(in *entity.ParseResult) *intentdv1.ParseResponse {
	return &intentdv1.ParseResponse{
		Intent:              in.Intent,
		IntentNamespace:     in.IntentNamespace,
		Language:            in.Language.Code(),
		Entities:            toPbEntityValues(in.Entities),
		NotRetainedEntities: toPbEntityValues(in.NotRetainedEntities),
		IntentProbability:   in.IntentProbability,
		EntitiesProbability: in.EntitiesProbability,
		RetainedQuery:       in.RetainedQuery,
		OtherIntentsProbabilities: lo.Map(in.OtherIntentsProbabilities, func(p entity.IntentProbability, _ int) intentdv1.IntentProbability {
			return intentdv1.IntentProbability{Intent: p.Intent, Probability: p.Probability}
		}),
	}
}

func FromPbMergeValuesRequest(in *intentdv1.MergeValuesRequest) *entity.ValuesMergeQuery {
	return &entity.ValuesMergeQuery{
		Namespace:       strings.TrimSpace(in.Namespace),
		ApplicationName: strings.TrimSpace(in.ApplicationName),
		Context:         FromPbQueryContext(in.Context),
		EntityType:      strings.TrimSpace(in.EntityType),
		EntityRole:      strings.TrimSpace(in.EntityRole),
		Values: lo.Map(in.Values, func(v intentdv1.ValueToMerge, _ int) entity.ValueToMerge {
			return entity.ValueToMerge{Value: v.Value, Content: v.Content, Initial: v.Initial, Date: v.Date}
		}),
	}
}

func ToPbMergeValuesResponse(in *entity.ValuesMergeResult) *intentdv1.MergeValuesResponse {
	return &intentdv1.MergeValuesResponse{Value: in.Value, Content: in.Content}
}
