package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
)

// ParserOptions holds process-wide parse defaults.
type ParserOptions struct {
	DefaultLocale     entity.Locale
	DefaultEngineType string
}

// ParserService classifies parse requests.
type ParserService struct {
	config     *ConfigurationRepository
	sentences  repository.SentenceRepository
	logs       repository.ParseLogRepository
	classifier nlp.Classifier
	executor   async.Executor
	opts       ParserOptions
	logger     logrus.FieldLogger
	clock      func() time.Time
}

func NewParserService(
	config *ConfigurationRepository,
	sentences repository.SentenceRepository,
	logs repository.ParseLogRepository,
	classifier nlp.Classifier,
	executor async.Executor,
	opts ParserOptions,
	logger logrus.FieldLogger,
) *ParserService {
	if opts.DefaultLocale == entity.LocaleUnspecified {
		opts.DefaultLocale = entity.LocaleEnglish
	}
	return &ParserService{
		config:     config,
		sentences:  sentences,
		logs:       logs,
		classifier: classifier,
		executor:   executor,
		opts:       opts,
		logger:     logger.WithField("component", "parser"),
		clock:      time.Now,
	}
}

// parseRequest is the per-request state shared by the pipeline steps.
type parseRequest struct {
	query     *entity.ParseQuery
	app       *entity.ApplicationDefinition
	locale    entity.Locale
	text      string
	intents   []entity.IntentDefinition
	selector  nlp.IntentSelector
	call      nlp.CallContext
	validated *entity.ClassifiedSentence
}

// Parse classifies the first non-blank query text of q. The request is always logged asynchronously.
func (p *ParserService) Parse(ctx context.Context, q *entity.ParseQuery) (*entity.ParseResult, error) {
	start := p.clock()
	result, appID, err := p.parse(ctx, q)
	p.logRequest(q, appID, result, err, start)
	return result, err
}

func (p *ParserService) parse(ctx context.Context, q *entity.ParseQuery) (*entity.ParseResult, string, error) {
	if q == nil {
		return nil, "", entity.ErrInvalidQuery
	}
	text := entity.NormalizeQuery(q.FirstQuery())

	app, err := p.config.Application(ctx, q.Namespace, q.ApplicationName)
	if err != nil {
		return nil, "", err
	}
	if app == nil {
		return nil, "", fmt.Errorf("%w: %s", entity.ErrUnknownApplication, entity.QualifiedName(q.Namespace, q.ApplicationName))
	}
	locale := p.resolveLocale(app, q.Context.Language)

	if text == "" {
		return p.unknownResult(app, locale, "", 0, nil), app.ID, nil
	}

	req, err := p.prepare(ctx, q, app, locale, text)
	if err != nil {
		return nil, app.ID, err
	}

	var result *entity.ParseResult
	if req.validated != nil && !q.Context.CheckConsistency {
		result, err = p.fromValidatedSentence(ctx, req)
		if err != nil {
			return nil, app.ID, err
		}
	}
	if result == nil {
		result, err = p.classify(ctx, req)
		if err != nil {
			return nil, app.ID, err
		}
	}

	sentence := p.toSentence(req, result)
	if q.Context.CheckConsistency && req.validated != nil && !req.validated.Classification.Equal(sentence.Classification) {
		return nil, app.ID, fmt.Errorf("%w: %q", entity.ErrInconsistentClassification, text)
	}
	if q.Context.RegisterQuery {
		p.registerSentence(req, sentence)
	}
	return result, app.ID, nil
}

// resolveLocale prefers an exact match, then a language match, then the default, then the first supported locale.
func (p *ParserService) resolveLocale(app *entity.ApplicationDefinition, requested entity.Locale) entity.Locale {
	if len(app.SupportedLocales) == 0 {
		return p.opts.DefaultLocale
	}
	if requested != entity.LocaleUnspecified && app.SupportsLocale(requested) {
		return requested
	}
	sorted := entity.SortLocales(app.SupportedLocales)
	if requested != entity.LocaleUnspecified {
		if match, ok := lo.Find(sorted, func(l entity.Locale) bool { return l.Language() == requested.Language() }); ok {
			return match
		}
	}
	entry := p.logger.WithFields(logrus.Fields{"app": app.QualifiedName(), "requested": requested})
	if app.SupportsLocale(p.opts.DefaultLocale) {
		entry.WithField("locale", p.opts.DefaultLocale).Warn("locale not supported, using default locale")
		return p.opts.DefaultLocale
	}
	entry.WithField("locale", sorted[0]).Warn("locale not supported, using first supported locale")
	return sorted[0]
}

func (p *ParserService) prepare(ctx context.Context, q *entity.ParseQuery, app *entity.ApplicationDefinition, locale entity.Locale, text string) (*parseRequest, error) {
	intents, err := p.config.SharedNamespaceIntents(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	model, err := p.config.ToApplication(ctx, app)
	if err != nil {
		return nil, err
	}
	req := &parseRequest{
		query:    q,
		app:      app,
		locale:   locale,
		text:     text,
		intents:  intents,
		selector: NewIntentSelector(app, intents, q.IntentsSubset, q.State.States),
		call: nlp.CallContext{
			Application:       model,
			Language:          locale,
			EngineType:        firstNonEmpty(q.Context.EngineType, app.EngineType, p.opts.DefaultEngineType),
			Evaluation:        p.evaluationContext(q.Context, intents),
			EvaluationEnabled: q.Context.EvaluationEnabled,
		},
	}

	lookup := text
	if app.NormalizeText {
		lookup = entity.NormalizeText(text)
	}
	req.validated, err = p.sentences.FindTrusted(ctx, app.ID, locale, lookup, app.NormalizeText)
	if err != nil {
		return nil, fmt.Errorf("find validated sentence: %w", err)
	}
	return req, nil
}

// evaluationContext resolves reference dates, moving entities flagged for start of day to midnight.
func (p *ParserService) evaluationContext(qc entity.QueryContext, intents []entity.IntentDefinition) nlp.EvaluationContext {
	loc := qc.Location()
	ref := qc.ReferenceDate
	if ref.IsZero() {
		ref = p.clock()
	}
	ref = ref.In(loc)
	startOfDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)

	byEntity := map[entity.EntityRef]time.Time{}
	for _, intent := range intents {
		for _, e := range intent.Entities {
			if e.AtStartOfDay {
				byEntity[e.Ref()] = startOfDay
			}
		}
	}
	return nlp.EvaluationContext{ReferenceDate: ref, ReferenceDateByEntity: byEntity, ReferenceTimezone: loc}
}

// fromValidatedSentence answers from ground truth when the stored intent is eligible for this request.
// It returns nil when the request must fall through to the classifier.
func (p *ParserService) fromValidatedSentence(ctx context.Context, req *parseRequest) (*entity.ParseResult, error) {
	intentID := req.validated.Classification.IntentID
	if intentID == entity.UnknownIntentName {
		return p.unknownResult(req.app, req.locale, req.text, 1.0, nil), nil
	}
	intent, err := p.config.IntentByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil || !req.selector.IsEligible(intent.QualifiedName()) {
		p.logger.WithFields(logrus.Fields{"app": req.app.QualifiedName(), "intent_id": intentID}).
			Debug("validated sentence not eligible, falling back to classifier")
		return nil, nil
	}
	recognitions := lo.Map(req.validated.Classification.Entities, func(e entity.ClassifiedEntity, _ int) nlp.EntityRecognition {
		return p.toRecognition(e)
	})
	values, err := p.classifier.EvaluateEntities(ctx, req.call, req.text, recognitions)
	if err != nil {
		return nil, fmt.Errorf("evaluate entities: %w", err)
	}
	return &entity.ParseResult{
		Intent:                    intent.Name,
		IntentNamespace:           intent.Namespace,
		Language:                  req.locale,
		Entities:                  lo.Ternary(values == nil, []entity.ParsedEntityValue{}, values),
		NotRetainedEntities:       []entity.ParsedEntityValue{},
		IntentProbability:         1.0,
		EntitiesProbability:       1.0,
		RetainedQuery:             req.text,
		OtherIntentsProbabilities: []entity.IntentProbability{},
	}, nil
}

func (p *ParserService) toRecognition(e entity.ClassifiedEntity) nlp.EntityRecognition {
	entityType := p.config.EntityTypes().Resolve(e.Type)
	if entityType == nil {
		entityType = &nlp.EntityType{Name: e.Type}
	}
	return nlp.EntityRecognition{
		Definition:  nlp.Entity{EntityType: entityType, Role: e.Role},
		Start:       e.Start,
		End:         e.End,
		Probability: 1.0,
		SubEntities: lo.Map(e.SubEntities, func(sub entity.ClassifiedEntity, _ int) nlp.EntityRecognition {
			return p.toRecognition(sub)
		}),
	}
}

func (p *ParserService) classify(ctx context.Context, req *parseRequest) (*entity.ParseResult, error) {
	out, err := p.classifier.Parse(ctx, req.call, req.text, req.selector)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if out == nil || out.Intent == "" || out.Intent == entity.UnknownIntentName {
		prob := 0.0
		if out != nil {
			prob = out.IntentProbability
		}
		return p.unknownResult(req.app, req.locale, req.text, prob, req.selector), nil
	}
	for intent, prob := range out.OtherIntents {
		if intent != out.Intent {
			req.selector.AddOtherIntent(intent, prob)
		}
	}

	namespace, name := entity.SplitQualifiedName(out.Intent)
	result := &entity.ParseResult{
		Intent:              name,
		IntentNamespace:     lo.Ternary(namespace == "", req.app.Namespace, namespace),
		Language:            req.locale,
		Entities:            lo.Ternary(out.Entities == nil, []entity.ParsedEntityValue{}, out.Entities),
		NotRetainedEntities: lo.Ternary(out.NotRetainedEntities == nil, []entity.ParsedEntityValue{}, out.NotRetainedEntities),
		IntentProbability:   out.IntentProbability,
		EntitiesProbability: out.EntitiesProbability,
		RetainedQuery:       req.text,
	}

	threshold := req.app.UnknownIntentThreshold
	if len(req.query.IntentsSubset) == 0 && threshold > 0 && result.IntentProbability < threshold {
		req.selector.AddOtherIntent(out.Intent, result.IntentProbability)
		result.Intent = entity.UnknownIntentName
		result.IntentNamespace = req.app.Namespace
		result.IntentProbability = 1.0
	}
	result.OtherIntentsProbabilities = otherIntentsByName(req.selector.OtherIntents())
	return result, nil
}

func (p *ParserService) unknownResult(app *entity.ApplicationDefinition, locale entity.Locale, text string, probability float64, selector nlp.IntentSelector) *entity.ParseResult {
	others := []entity.IntentProbability{}
	if selector != nil {
		others = otherIntentsByName(selector.OtherIntents())
	}
	return &entity.ParseResult{
		Intent:                    entity.UnknownIntentName,
		IntentNamespace:           app.Namespace,
		Language:                  locale,
		Entities:                  []entity.ParsedEntityValue{},
		NotRetainedEntities:       []entity.ParsedEntityValue{},
		IntentProbability:         probability,
		EntitiesProbability:       1.0,
		RetainedQuery:             text,
		OtherIntentsProbabilities: others,
	}
}

// otherIntentsByName drops namespaces from alternate intents, keeping the best score on collisions.
func otherIntentsByName(qualified map[string]float64) []entity.IntentProbability {
	byName := make(map[string]float64, len(qualified))
	for intent, prob := range qualified {
		_, name := entity.SplitQualifiedName(intent)
		if current, ok := byName[name]; !ok || prob > current {
			byName[name] = prob
		}
	}
	return entity.SortIntentProbabilities(byName)
}

// toSentence converts a result into the sentence that registration would persist.
// Low-confidence results are stored as unknown without entities.
func (p *ParserService) toSentence(req *parseRequest, result *entity.ParseResult) *entity.ClassifiedSentence {
	intentID := entity.UnknownIntentName
	if !result.IsUnknown() {
		qualified := entity.QualifiedName(result.IntentNamespace, result.Intent)
		if def, ok := lo.Find(req.intents, func(i entity.IntentDefinition) bool { return i.QualifiedName() == qualified }); ok {
			intentID = def.ID
		}
	}
	entities := lo.Map(result.Entities, func(v entity.ParsedEntityValue, _ int) entity.ClassifiedEntity {
		return v.ToClassified()
	})
	if result.IntentProbability <= entity.LowConfidenceThreshold || intentID == entity.UnknownIntentName {
		intentID = entity.UnknownIntentName
		entities = []entity.ClassifiedEntity{}
	}
	now := p.clock()
	sentence := &entity.ClassifiedSentence{
		Text:                  req.text,
		Language:              req.locale,
		ApplicationID:         req.app.ID,
		Classification:        entity.Classification{IntentID: intentID, Entities: entities},
		Status:                entity.SentenceStatusUnvalidated,
		LastIntentProbability: result.IntentProbability,
		LastEntityProbability: result.EntitiesProbability,
		ForcedNormalization:   req.app.NormalizeText,
	}
	sentence.Normalize(now)
	return sentence
}

func (p *ParserService) registerSentence(req *parseRequest, sentence *entity.ClassifiedSentence) {
	if req.validated != nil {
		candidate := *sentence
		// a normalized match stands for the stored text
		if req.app.NormalizeText && candidate.NormalizedText == req.validated.NormalizedText {
			candidate.Text = req.validated.Text
		}
		if req.validated.HasSameContent(&candidate) {
			return
		}
	}
	p.executor.Submit("register sentence", func(ctx context.Context) error {
		return p.sentences.Save(ctx, sentence)
	})
}

func (p *ParserService) logRequest(q *entity.ParseQuery, appID string, result *entity.ParseResult, err error, start time.Time) {
	if p.logs == nil {
		return
	}
	record := &entity.ParseRequestLog{
		ID:            ulid.Make().String(),
		ApplicationID: appID,
		Query:         q,
		Duration:      p.clock().Sub(start),
		Error:         err != nil,
		Date:          start,
	}
	if err == nil {
		record.Result = result
	}
	p.executor.Submit("log parse request", func(ctx context.Context) error {
		return p.logs.Save(ctx, record)
	})
}

// MergeValues combines successive values of one entity through the classifier.
func (p *ParserService) MergeValues(ctx context.Context, q *entity.ValuesMergeQuery) (*entity.ValuesMergeResult, error) {
	if q == nil || q.EntityType == "" {
		return nil, entity.ErrInvalidQuery
	}
	app, err := p.config.Application(ctx, q.Namespace, q.ApplicationName)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownApplication, entity.QualifiedName(q.Namespace, q.ApplicationName))
	}
	def, err := p.config.EntityTypeByName(ctx, q.EntityType)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownEntityType, q.EntityType)
	}
	model, err := p.config.ToApplication(ctx, app)
	if err != nil {
		return nil, err
	}
	locale := p.resolveLocale(app, q.Context.Language)
	call := nlp.CallContext{
		Application:       model,
		Language:          locale,
		EngineType:        firstNonEmpty(q.Context.EngineType, app.EngineType, p.opts.DefaultEngineType),
		Evaluation:        p.evaluationContext(q.Context, nil),
		EvaluationEnabled: true,
	}
	merged, err := p.classifier.MergeValues(ctx, call, p.config.ToEntityType(def), q.Values)
	if err != nil {
		return nil, fmt.Errorf("merge values: %w", err)
	}
	if merged == nil {
		return &entity.ValuesMergeResult{}, nil
	}
	return &entity.ValuesMergeResult{Value: merged.Value, Content: merged.Content}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
