package usecase

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var errStoreDown = errors.New("store unavailable")

// in-memory definition store shared by the repository fakes
type fakeStore struct {
	mu           sync.RWMutex
	apps         []entity.ApplicationDefinition
	intents      []entity.IntentDefinition
	entityTypes  []entity.EntityTypeDefinition
	namespaces   []entity.NamespaceConfiguration
	dictionaries []entity.DictionaryData
	fail         bool
	lookups      int
}

func (s *fakeStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

type fakeAppRepo struct{ *fakeStore }

func (r fakeAppRepo) List(ctx context.Context) ([]entity.ApplicationDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail {
		return nil, errStoreDown
	}
	return slices.Clone(r.apps), nil
}
func (r fakeAppRepo) GetByID(ctx context.Context, id string) (*entity.ApplicationDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, a := range r.apps {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}
func (r fakeAppRepo) Lookup(ctx context.Context, namespace, name string) (*entity.ApplicationDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, a := range r.apps {
		if a.Namespace == namespace && a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}
func (r fakeAppRepo) ListByNamespace(ctx context.Context, namespace string) ([]entity.ApplicationDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.ApplicationDefinition
	for _, a := range r.apps {
		if a.Namespace == namespace {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r fakeAppRepo) Save(ctx context.Context, app *entity.ApplicationDefinition) (*entity.ApplicationDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps = append(r.apps, *app)
	return app, nil
}

type fakeIntentRepo struct{ *fakeStore }

func (r fakeIntentRepo) List(ctx context.Context) ([]entity.IntentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail {
		return nil, errStoreDown
	}
	return slices.Clone(r.intents), nil
}
func (r fakeIntentRepo) GetByID(ctx context.Context, id string) (*entity.IntentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, i := range r.intents {
		if i.ID == id {
			return &i, nil
		}
	}
	return nil, nil
}
func (r fakeIntentRepo) ListByApplication(ctx context.Context, applicationID string) ([]entity.IntentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.IntentDefinition
	for _, i := range r.intents {
		if slices.Contains(i.ApplicationIDs, applicationID) {
			out = append(out, i)
		}
	}
	return out, nil
}
func (r fakeIntentRepo) Save(ctx context.Context, intent *entity.IntentDefinition) (*entity.IntentDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, *intent)
	return intent, nil
}

type fakeEntityTypeRepo struct{ *fakeStore }

func (r fakeEntityTypeRepo) List(ctx context.Context) ([]entity.EntityTypeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail {
		return nil, errStoreDown
	}
	return slices.Clone(r.entityTypes), nil
}
func (r fakeEntityTypeRepo) GetByName(ctx context.Context, name string) (*entity.EntityTypeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entityTypes {
		if e.Name == name {
			return &e, nil
		}
	}
	return nil, nil
}
func (r fakeEntityTypeRepo) Save(ctx context.Context, def *entity.EntityTypeDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entityTypes = append(r.entityTypes, *def)
	return nil
}

type fakeNamespaceRepo struct{ *fakeStore }

func (r fakeNamespaceRepo) List(ctx context.Context) ([]entity.NamespaceConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.namespaces), nil
}
func (r fakeNamespaceRepo) Save(ctx context.Context, cfg *entity.NamespaceConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.namespaces = append(r.namespaces, *cfg)
	return nil
}

type fakeDictionaryRepo struct{ *fakeStore }

func (r fakeDictionaryRepo) List(ctx context.Context) ([]entity.DictionaryData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.dictionaries), nil
}
func (r fakeDictionaryRepo) Save(ctx context.Context, data *entity.DictionaryData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dictionaries = append(r.dictionaries, *data)
	return nil
}

// fakeNotifier records listeners and fires them on demand.
type fakeNotifier struct {
	mu        sync.Mutex
	listeners map[repository.Collection][]func()
}

func (n *fakeNotifier) Listen(collection repository.Collection, callback func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = map[repository.Collection][]func(){}
	}
	n.listeners[collection] = append(n.listeners[collection], callback)
}
func (n *fakeNotifier) Start(ctx context.Context) error { return nil }
func (n *fakeNotifier) fire(collection repository.Collection) {
	n.mu.Lock()
	callbacks := slices.Clone(n.listeners[collection])
	n.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

type fakeSentenceRepo struct {
	mu         sync.RWMutex
	sentences  []entity.ClassifiedSentence
	saves      int
	namespaces map[string]string // application id to namespace
	err        error
}

func (r *fakeSentenceRepo) FindTrusted(ctx context.Context, applicationID string, language entity.Locale, text string, normalized bool) (*entity.ClassifiedSentence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sentences {
		candidate := s.Text
		if normalized {
			candidate = s.NormalizedText
		}
		if s.ApplicationID == applicationID && s.Language == language && candidate == text && s.Status.Trusted() {
			return &s, nil
		}
	}
	return nil, nil
}
func (r *fakeSentenceRepo) Save(ctx context.Context, sentence *entity.ClassifiedSentence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.err != nil {
		return r.err
	}
	for i, s := range r.sentences {
		if s.ApplicationID == sentence.ApplicationID && s.Language == sentence.Language && s.Text == sentence.Text {
			r.sentences[i] = *sentence
			return nil
		}
	}
	r.sentences = append(r.sentences, *sentence)
	return nil
}
func (r *fakeSentenceRepo) matches(q *repository.SentenceQuery, s entity.ClassifiedSentence) bool {
	if q.ApplicationID != "" && s.ApplicationID != q.ApplicationID {
		return false
	}
	if q.Namespace != "" && r.namespaces[s.ApplicationID] != q.Namespace {
		return false
	}
	if q.Language != "" && s.Language != q.Language {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, s.Status) {
		return false
	}
	if len(q.IntentIDs) > 0 && !slices.Contains(q.IntentIDs, s.Classification.IntentID) {
		return false
	}
	if q.EntityType != "" && !hasEntityType(s.Classification.Entities, q.EntityType) {
		return false
	}
	if !q.UpdatedBefore.IsZero() && s.UpdatedAt.After(q.UpdatedBefore) {
		return false
	}
	return true
}
func hasEntityType(entities []entity.ClassifiedEntity, name string) bool {
	for _, e := range entities {
		if e.Type == name || hasEntityType(e.SubEntities, name) {
			return true
		}
	}
	return false
}
func (r *fakeSentenceRepo) Search(ctx context.Context, q *repository.SentenceQuery) ([]entity.ClassifiedSentence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.ClassifiedSentence
	for _, s := range r.sentences {
		if r.matches(q, s) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (r *fakeSentenceRepo) List(ctx context.Context, q *repository.ListSentenceQuery) ([]entity.ClassifiedSentence, int64, error) {
	return nil, 0, errors.New("not implemented")
}
func (r *fakeSentenceRepo) UpdateStatus(ctx context.Context, q *repository.SentenceQuery, from, to entity.SentenceStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i, s := range r.sentences {
		if s.Status == from && r.matches(q, s) {
			r.sentences[i].Status = to
			n++
		}
	}
	return n, nil
}
func (r *fakeSentenceRepo) saveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
func (r *fakeSentenceRepo) get(appID string, text string) *entity.ClassifiedSentence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sentences {
		if s.ApplicationID == appID && s.Text == text {
			return &s
		}
	}
	return nil
}

type fakeBuildRepo struct {
	mu     sync.Mutex
	builds []entity.ModelBuild
	err    error
}

func (r *fakeBuildRepo) Save(ctx context.Context, build *entity.ModelBuild) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.builds = append(r.builds, *build)
	return nil
}
func (r *fakeBuildRepo) ListByApplication(ctx context.Context, applicationID string, limit int32) ([]entity.ModelBuild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.builds), nil
}

type fakeParseLogRepo struct {
	mu       sync.Mutex
	logs     []entity.ParseRequestLog
	attempts int
	err      error
}

func (r *fakeParseLogRepo) Save(ctx context.Context, log *entity.ParseRequestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, *log)
	return nil
}
func (r *fakeParseLogRepo) List(ctx context.Context, filter entity.ParseLogFilter) ([]entity.ParseRequestLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.logs), nil
}

type fakeTriggerRepo struct {
	mu       sync.Mutex
	triggers []entity.ModelBuildTrigger
}

func (r *fakeTriggerRepo) Save(ctx context.Context, trigger *entity.ModelBuildTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, *trigger)
	return nil
}
func (r *fakeTriggerRepo) ListPending(ctx context.Context, limit int32) ([]entity.ModelBuildTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.triggers), nil
}
func (r *fakeTriggerRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = slices.DeleteFunc(r.triggers, func(t entity.ModelBuildTrigger) bool { return t.ID == id })
	return nil
}

// fakeClassifier ranks intents from a canned table and counts calls.
type fakeClassifier struct {
	mu            sync.Mutex
	ranked        map[string][]entity.IntentProbability
	entities      map[string][]entity.ParsedEntityValue
	builtIns      []string
	parseErr      error
	buildErr      error
	parseCalls    int
	evalCalls     int
	intentBuilds  [][]nlp.SampleExpression
	entityBuilds  [][]nlp.SampleExpression
	typeBuilds    [][]nlp.SampleExpression
	orphans       *nlp.OrphanFilter
	dictionaries  []entity.DictionaryData
	lastCall      nlp.CallContext
	lastTypeBuild nlp.BuildContext
}

func (c *fakeClassifier) Parse(ctx context.Context, call nlp.CallContext, text string, selector nlp.IntentSelector) (*nlp.ParseOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parseCalls++
	c.lastCall = call
	if c.parseErr != nil {
		return nil, c.parseErr
	}
	intent, p, ok := selector.SelectIntent(c.ranked[text])
	if !ok {
		return &nlp.ParseOutput{Intent: entity.UnknownIntentName, OtherIntents: selector.OtherIntents()}, nil
	}
	return &nlp.ParseOutput{
		Intent:              intent,
		IntentProbability:   p,
		Entities:            c.entities[text],
		EntitiesProbability: 1,
		OtherIntents:        selector.OtherIntents(),
	}, nil
}
func (c *fakeClassifier) EvaluateEntities(ctx context.Context, call nlp.CallContext, text string, recognitions []nlp.EntityRecognition) ([]entity.ParsedEntityValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evalCalls++
	c.lastCall = call
	return toValues(recognitions), nil
}
func toValues(recognitions []nlp.EntityRecognition) []entity.ParsedEntityValue {
	var out []entity.ParsedEntityValue
	for _, r := range recognitions {
		out = append(out, entity.ParsedEntityValue{
			Start:       r.Start,
			End:         r.End,
			Entity:      r.Definition.Ref(),
			Probability: r.Probability,
			SubEntities: toValues(r.SubEntities),
		})
	}
	return out
}
func (c *fakeClassifier) MergeValues(ctx context.Context, call nlp.CallContext, entityType *nlp.EntityType, values []entity.ValueToMerge) (*entity.ValueToMerge, error) {
	if len(values) == 0 {
		return nil, nil
	}
	last := values[len(values)-1]
	return &last, nil
}
func (c *fakeClassifier) UpdateIntentModel(ctx context.Context, build nlp.BuildContext, samples []nlp.SampleExpression) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intentBuilds = append(c.intentBuilds, samples)
	return c.buildErr
}
func (c *fakeClassifier) UpdateEntityModelForIntent(ctx context.Context, build nlp.BuildContext, intent nlp.Intent, samples []nlp.SampleExpression) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entityBuilds = append(c.entityBuilds, samples)
	return c.buildErr
}
func (c *fakeClassifier) UpdateEntityModelForEntityType(ctx context.Context, build nlp.BuildContext, entityType *nlp.EntityType, samples []nlp.SampleExpression) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typeBuilds = append(c.typeBuilds, samples)
	c.lastTypeBuild = build
	return c.buildErr
}
func (c *fakeClassifier) DeleteOrphans(ctx context.Context, filter nlp.OrphanFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orphans = &filter
	return nil
}
func (c *fakeClassifier) BuiltInEntityTypes(ctx context.Context) ([]string, error) {
	return c.builtIns, nil
}
func (c *fakeClassifier) LoadDictionaries(ctx context.Context, dictionaries []entity.DictionaryData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dictionaries = dictionaries
	return nil
}
func (c *fakeClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parseCalls
}

// fixture wires the usecases over the fakes with a synchronous executor.
type fixture struct {
	store      *fakeStore
	notifier   *fakeNotifier
	sentences  *fakeSentenceRepo
	builds     *fakeBuildRepo
	logs       *fakeParseLogRepo
	triggers   *fakeTriggerRepo
	classifier *fakeClassifier
	config     *ConfigurationRepository
	parser     *ParserService
	updater    *ModelUpdaterService
}

func newFixture(store *fakeStore) *fixture {
	logger := quietLogger()
	f := &fixture{
		store:      store,
		notifier:   &fakeNotifier{},
		sentences:  &fakeSentenceRepo{namespaces: map[string]string{}},
		builds:     &fakeBuildRepo{},
		logs:       &fakeParseLogRepo{},
		triggers:   &fakeTriggerRepo{},
		classifier: &fakeClassifier{ranked: map[string][]entity.IntentProbability{}, entities: map[string][]entity.ParsedEntityValue{}},
	}
	for _, app := range store.apps {
		f.sentences.namespaces[app.ID] = app.Namespace
	}
	executor := async.Inline{Logger: logger}
	f.config = NewConfigurationRepository(Stores{
		Applications: fakeAppRepo{store},
		Intents:      fakeIntentRepo{store},
		EntityTypes:  fakeEntityTypeRepo{store},
		Namespaces:   fakeNamespaceRepo{store},
		Dictionaries: fakeDictionaryRepo{store},
		Notifier:     f.notifier,
	}, f.classifier, executor, logger)
	f.parser = NewParserService(f.config, f.sentences, f.logs, f.classifier, executor, ParserOptions{DefaultLocale: entity.LocaleEnglish}, logger)
	f.updater = NewModelUpdaterService(f.config, f.sentences, f.builds, f.triggers, f.classifier, logger)
	return f
}

// bankStore is the acme:bank application with a balance and a transfer intent.
func bankStore() *fakeStore {
	return &fakeStore{
		apps: []entity.ApplicationDefinition{{
			ID:                     "app-bank",
			Namespace:              "acme",
			Name:                   "bank",
			Intents:                []string{"int-balance", "int-transfer"},
			SupportedLocales:       []entity.Locale{entity.LocaleEnglish},
			UnknownIntentThreshold: 0.95,
		}},
		intents: []entity.IntentDefinition{
			{ID: "int-balance", Namespace: "acme", Name: "balance", ApplicationIDs: []string{"app-bank"}},
			{
				ID: "int-transfer", Namespace: "acme", Name: "transfer", ApplicationIDs: []string{"app-bank"},
				Entities: []entity.EntityDefinition{
					{EntityTypeName: "acme:amount", Role: "amount"},
					{EntityTypeName: "duckling:datetime", Role: "when", AtStartOfDay: true},
				},
			},
		},
		entityTypes: []entity.EntityTypeDefinition{
			{Name: "acme:amount"},
			{Name: "duckling:datetime"},
		},
	}
}

func bankQuery(text string) *entity.ParseQuery {
	return &entity.ParseQuery{
		Namespace:       "acme",
		ApplicationName: "bank",
		Queries:         []string{text},
		Context:         entity.QueryContext{Language: entity.LocaleEnglish},
	}
}
