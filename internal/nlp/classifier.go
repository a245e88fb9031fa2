package nlp

import (
	"context"

	"github.com/eslsoft/intentd/internal/entity"
)

// Classifier is the statistical engine.
type Classifier interface {
	Parse(ctx context.Context, call CallContext, text string, selector IntentSelector) (*ParseOutput, error)
	EvaluateEntities(ctx context.Context, call CallContext, text string, recognitions []EntityRecognition) ([]entity.ParsedEntityValue, error)
	MergeValues(ctx context.Context, call CallContext, entityType *EntityType, values []entity.ValueToMerge) (*entity.ValueToMerge, error)

	UpdateIntentModel(ctx context.Context, build BuildContext, samples []SampleExpression) error
	UpdateEntityModelForIntent(ctx context.Context, build BuildContext, intent Intent, samples []SampleExpression) error
	UpdateEntityModelForEntityType(ctx context.Context, build BuildContext, entityType *EntityType, samples []SampleExpression) error
	DeleteOrphans(ctx context.Context, filter OrphanFilter) error

	BuiltInEntityTypes(ctx context.Context) ([]string, error)
	LoadDictionaries(ctx context.Context, dictionaries []entity.DictionaryData) error
}

// IntentSelector decides which intents may win a classification and ranks the candidates.
type IntentSelector interface {
	// IsEligible reports whether the qualified intent may be returned for this request.
	IsEligible(intent string) bool
	// SelectIntent picks the winner among ranked candidates; ok is false when none is eligible.
	SelectIntent(ranked []entity.IntentProbability) (intent string, probability float64, ok bool)
	// OtherIntents returns the non-winning eligible intents seen so far.
	OtherIntents() map[string]float64
	AddOtherIntent(intent string, probability float64)
}
