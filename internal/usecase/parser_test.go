package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/eslsoft/intentd/internal/entity"
)

func initFixture(t *testing.T, store *fakeStore) *fixture {
	t.Helper()
	f := newFixture(store)
	if !f.config.InitRepository(context.Background()) {
		t.Fatalf("init failed")
	}
	return f
}

func validatedSentence(text, intentID string, entities ...entity.ClassifiedEntity) entity.ClassifiedSentence {
	s := entity.ClassifiedSentence{
		Text:           text,
		Language:       entity.LocaleEnglish,
		ApplicationID:  "app-bank",
		Classification: entity.Classification{IntentID: intentID, Entities: entities},
		Status:         entity.SentenceStatusValidated,
	}
	s.Normalize(time.Now())
	return s
}

func TestParse_DemotesBelowThreshold(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.ranked["what's my balance"] = []entity.IntentProbability{{Intent: "acme:balance", Probability: 0.82}}

	res, err := f.parser.Parse(context.Background(), bankQuery("what's my balance"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != entity.UnknownIntentName || res.IntentProbability != 1.0 {
		t.Fatalf("expected unknown with probability 1, got %s %.2f", res.Intent, res.IntentProbability)
	}
	want := []entity.IntentProbability{{Intent: "balance", Probability: 0.82}}
	if !reflect.DeepEqual(res.OtherIntentsProbabilities, want) {
		t.Fatalf("unexpected alternates %+v", res.OtherIntentsProbabilities)
	}
}

func TestParse_KeepsConfidentIntentAndSortsAlternates(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.ranked["send 10 euros"] = []entity.IntentProbability{
		{Intent: "acme:transfer", Probability: 0.97},
		{Intent: "acme:balance", Probability: 0.02},
	}
	res, err := f.parser.Parse(context.Background(), bankQuery("send\t10 euros\r\n"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "transfer" || res.IntentNamespace != "acme" || res.RetainedQuery != "send 10 euros" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.OtherIntentsProbabilities) != 1 || res.OtherIntentsProbabilities[0].Intent != "balance" {
		t.Fatalf("unexpected alternates %+v", res.OtherIntentsProbabilities)
	}
}

func TestParse_NoDemotionWithQualifiers(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.ranked["what's my balance"] = []entity.IntentProbability{{Intent: "acme:balance", Probability: 0.5}}
	q := bankQuery("what's my balance")
	q.IntentsSubset = []entity.IntentQualifier{{Intent: "acme:balance"}}

	res, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "balance" || res.IntentProbability != 0.5 {
		t.Fatalf("expected qualifier to bypass threshold, got %s %.2f", res.Intent, res.IntentProbability)
	}
}

func TestParse_ValidatedSentenceBypassesClassifier(t *testing.T) {
	f := initFixture(t, bankStore())
	f.sentences.sentences = append(f.sentences.sentences, validatedSentence("what's my balance", "int-balance"))

	res, err := f.parser.Parse(context.Background(), bankQuery("what's my balance"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "balance" || res.IntentProbability != 1.0 {
		t.Fatalf("expected stored classification, got %s %.2f", res.Intent, res.IntentProbability)
	}
	if f.classifier.calls() != 0 {
		t.Fatalf("expected no classifier call, got %d", f.classifier.calls())
	}
	if f.classifier.evalCalls != 1 {
		t.Fatalf("expected entity evaluation to run, got %d", f.classifier.evalCalls)
	}
}

func TestParse_ModelSentenceWithNormalization(t *testing.T) {
	store := bankStore()
	store.apps[0].NormalizeText = true
	f := initFixture(t, store)
	s := validatedSentence("Quel est mon Solde", "int-balance")
	s.Status = entity.SentenceStatusModel
	f.sentences.sentences = append(f.sentences.sentences, s)

	res, err := f.parser.Parse(context.Background(), bankQuery("quel est mon solde"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "balance" || f.classifier.calls() != 0 {
		t.Fatalf("expected normalized fast path, got %s with %d classifier calls", res.Intent, f.classifier.calls())
	}
}

func TestParse_NormalizedMatchIsNotRegisteredAgain(t *testing.T) {
	store := bankStore()
	store.apps[0].NormalizeText = true
	f := initFixture(t, store)
	f.sentences.sentences = append(f.sentences.sentences, validatedSentence("Quel est mon Solde", "int-balance"))

	q := bankQuery("quel est mon solde")
	q.Context.RegisterQuery = true
	res, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "balance" {
		t.Fatalf("expected fast path, got %s", res.Intent)
	}
	if f.sentences.saveCount() != 0 {
		t.Fatalf("expected no duplicate registration, got %d saves", f.sentences.saveCount())
	}
	if n := len(f.sentences.sentences); n != 1 {
		t.Fatalf("expected a single stored sentence, got %d", n)
	}
}

func TestParse_FastPathRespectsStatesAndQualifiers(t *testing.T) {
	store := bankStore()
	store.intents[0].MandatoryStates = []string{"authenticated"}
	f := initFixture(t, store)
	f.sentences.sentences = append(f.sentences.sentences, validatedSentence("what's my balance", "int-balance"))
	f.classifier.ranked["what's my balance"] = []entity.IntentProbability{
		{Intent: "acme:balance", Probability: 0.99},
		{Intent: "acme:transfer", Probability: 0.98},
	}

	res, err := f.parser.Parse(context.Background(), bankQuery("what's my balance"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.classifier.calls() != 1 || res.Intent != "transfer" {
		t.Fatalf("expected fall through to classifier without the state, got %s after %d calls", res.Intent, f.classifier.calls())
	}

	q := bankQuery("what's my balance")
	q.State.States = []string{"authenticated"}
	res, _ = f.parser.Parse(context.Background(), q)
	if f.classifier.calls() != 1 || res.Intent != "balance" {
		t.Fatalf("expected fast path with matching state, got %s after %d calls", res.Intent, f.classifier.calls())
	}

	q.IntentsSubset = []entity.IntentQualifier{{Intent: "acme:transfer"}}
	res, _ = f.parser.Parse(context.Background(), q)
	if f.classifier.calls() != 2 || res.Intent != "transfer" {
		t.Fatalf("expected qualifier to exclude stored intent, got %s after %d calls", res.Intent, f.classifier.calls())
	}
}

func TestParse_IdempotentWithoutRegistration(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.ranked["send money"] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	ref := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	q := bankQuery("send money")
	q.Context.ReferenceDate = ref

	first, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results\n%+v\n%+v", first, second)
	}
	if f.sentences.saveCount() != 0 {
		t.Fatalf("expected no persisted sentence, got %d saves", f.sentences.saveCount())
	}
	if len(f.logs.logs) != 2 {
		t.Fatalf("expected both requests to be logged, got %d", len(f.logs.logs))
	}
}

func TestParse_RegisteredSentenceRoundTrip(t *testing.T) {
	f := initFixture(t, bankStore())
	text := "send 10 euros tomorrow"
	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	f.classifier.entities[text] = []entity.ParsedEntityValue{
		{Start: 5, End: 13, Entity: entity.EntityRef{Type: "acme:amount", Role: "amount"}, Probability: 1},
		{Start: 14, End: 22, Entity: entity.EntityRef{Type: "duckling:datetime", Role: "when"}, Probability: 1},
	}
	q := bankQuery(text)
	q.Context.RegisterQuery = true

	original, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	stored := f.sentences.get("app-bank", text)
	if stored == nil || stored.Status != entity.SentenceStatusUnvalidated || stored.Classification.IntentID != "int-transfer" {
		t.Fatalf("expected registered sentence, got %+v", stored)
	}

	f.sentences.mu.Lock()
	f.sentences.sentences[0].Status = entity.SentenceStatusValidated
	f.sentences.mu.Unlock()

	again, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.classifier.calls() != 1 {
		t.Fatalf("expected second parse to use the validated sentence, got %d classifier calls", f.classifier.calls())
	}
	if again.Intent != original.Intent || len(again.Entities) != len(original.Entities) {
		t.Fatalf("round trip mismatch\n%+v\n%+v", original, again)
	}
	for i := range again.Entities {
		a, o := again.Entities[i], original.Entities[i]
		if a.Start != o.Start || a.End != o.End || a.Entity != o.Entity {
			t.Fatalf("entity %d mismatch: %+v vs %+v", i, a, o)
		}
	}
	if f.sentences.saveCount() != 1 {
		t.Fatalf("expected same-content registration to be skipped, got %d saves", f.sentences.saveCount())
	}
}

func TestParse_AsyncFailuresDoNotFailRequest(t *testing.T) {
	f := initFixture(t, bankStore())
	f.sentences.err = errStoreDown
	f.logs.err = errStoreDown
	text := "send 10 euros"
	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	q := bankQuery(text)
	q.Context.RegisterQuery = true

	res, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("side path failure leaked to the caller: %v", err)
	}
	if res.Intent != "transfer" {
		t.Fatalf("expected transfer, got %s", res.Intent)
	}
	if f.sentences.saveCount() != 1 {
		t.Fatalf("expected one registration attempt, got %d", f.sentences.saveCount())
	}
	f.logs.mu.Lock()
	attempts := f.logs.attempts
	f.logs.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("expected one request log attempt, got %d", attempts)
	}
}

func TestParse_LowConfidenceRegisteredAsUnknown(t *testing.T) {
	store := bankStore()
	store.apps[0].UnknownIntentThreshold = 0
	f := initFixture(t, store)
	text := "blah"
	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.08}}
	f.classifier.entities[text] = []entity.ParsedEntityValue{{Start: 0, End: 4, Entity: entity.EntityRef{Type: "acme:amount", Role: "amount"}}}
	q := bankQuery(text)
	q.Context.RegisterQuery = true

	res, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != "transfer" {
		t.Fatalf("expected caller to still see the guess, got %s", res.Intent)
	}
	stored := f.sentences.get("app-bank", text)
	if stored == nil || stored.Classification.IntentID != entity.UnknownIntentName || len(stored.Classification.Entities) != 0 {
		t.Fatalf("expected unknown registration, got %+v", stored)
	}
}

func TestParse_RegistrationOverwritesDifferentValidatedSentence(t *testing.T) {
	f := initFixture(t, bankStore())
	text := "what's my balance"
	f.sentences.sentences = append(f.sentences.sentences, validatedSentence(text, "int-balance"))
	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	q := bankQuery(text)
	q.Context.RegisterQuery = true
	q.IntentsSubset = []entity.IntentQualifier{{Intent: "acme:transfer"}}

	if _, err := f.parser.Parse(context.Background(), q); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	stored := f.sentences.get("app-bank", text)
	if stored.Classification.IntentID != "int-transfer" || stored.Status != entity.SentenceStatusUnvalidated {
		t.Fatalf("expected validated sentence to be overwritten, got %+v", stored)
	}
}

func TestParse_ConsistencyCheckDetectsDrift(t *testing.T) {
	f := initFixture(t, bankStore())
	text := "what's my balance"
	f.sentences.sentences = append(f.sentences.sentences, validatedSentence(text, "int-balance"))
	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	q := bankQuery(text)
	q.Context.CheckConsistency = true

	_, err := f.parser.Parse(context.Background(), q)
	if !errors.Is(err, entity.ErrInconsistentClassification) {
		t.Fatalf("expected inconsistency error, got %v", err)
	}

	f.classifier.ranked[text] = []entity.IntentProbability{{Intent: "acme:balance", Probability: 0.99}}
	if _, err := f.parser.Parse(context.Background(), q); err != nil {
		t.Fatalf("expected consistent classification to pass, got %v", err)
	}
}

func TestParse_EmptyTextIsUnknownWithoutClassifier(t *testing.T) {
	f := initFixture(t, bankStore())
	q := bankQuery(" \t\r\n")
	res, err := f.parser.Parse(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intent != entity.UnknownIntentName || res.IntentProbability != 0 || f.classifier.calls() != 0 {
		t.Fatalf("unexpected result %+v after %d calls", res, f.classifier.calls())
	}
}

func TestParse_UnknownApplication(t *testing.T) {
	f := initFixture(t, bankStore())
	q := bankQuery("hello")
	q.ApplicationName = "ghost"
	_, err := f.parser.Parse(context.Background(), q)
	if !errors.Is(err, entity.ErrUnknownApplication) {
		t.Fatalf("expected unknown application, got %v", err)
	}
	if len(f.logs.logs) != 1 || !f.logs.logs[0].Error || f.logs.logs[0].Result != nil {
		t.Fatalf("expected failed request to be logged, got %+v", f.logs.logs)
	}
}

func TestParse_ClassifierErrorPropagates(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.parseErr = errors.New("engine down")
	_, err := f.parser.Parse(context.Background(), bankQuery("hello"))
	if err == nil || !errors.Is(err, f.classifier.parseErr) {
		t.Fatalf("expected classifier error, got %v", err)
	}
}

func TestParse_ResolvesLocale(t *testing.T) {
	store := bankStore()
	store.apps[0].SupportedLocales = []entity.Locale{"fr-CA", "en"}
	f := initFixture(t, store)

	cases := []struct {
		requested entity.Locale
		want      entity.Locale
	}{
		{"fr-CA", "fr-CA"},
		{"fr", "fr-CA"},
		{"de", "en"},
		{"", "en"},
	}
	for _, c := range cases {
		q := bankQuery("hello")
		q.Context.Language = c.requested
		res, err := f.parser.Parse(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if res.Language != c.want {
			t.Fatalf("requested %q: expected %q, got %q", c.requested, c.want, res.Language)
		}
	}

	store.apps[0].SupportedLocales = []entity.Locale{"it", "es"}
	if err := f.config.RefreshApplications(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	q := bankQuery("hello")
	q.Context.Language = "de"
	res, _ := f.parser.Parse(context.Background(), q)
	if res.Language != "es" {
		t.Fatalf("expected first sorted locale, got %q", res.Language)
	}
}

func TestParse_StartOfDayReferenceDate(t *testing.T) {
	f := initFixture(t, bankStore())
	f.classifier.ranked["send money"] = []entity.IntentProbability{{Intent: "acme:transfer", Probability: 0.99}}
	q := bankQuery("send money")
	q.Context.ReferenceDate = time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	q.Context.ReferenceTimezone = "Europe/Paris"

	if _, err := f.parser.Parse(context.Background(), q); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	eval := f.classifier.lastCall.Evaluation
	got, ok := eval.ReferenceDateByEntity[entity.EntityRef{Type: "duckling:datetime", Role: "when"}]
	if !ok {
		t.Fatalf("expected a start-of-day reference for the flagged entity")
	}
	paris, _ := time.LoadLocation("Europe/Paris")
	if want := time.Date(2024, 5, 2, 0, 0, 0, 0, paris); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, ok := eval.ReferenceDateByEntity[entity.EntityRef{Type: "acme:amount", Role: "amount"}]; ok {
		t.Fatalf("unflagged entity must use the plain reference date")
	}
}

func TestMergeValues(t *testing.T) {
	f := initFixture(t, bankStore())
	res, err := f.parser.MergeValues(context.Background(), &entity.ValuesMergeQuery{
		Namespace:       "acme",
		ApplicationName: "bank",
		EntityType:      "duckling:datetime",
		Values: []entity.ValueToMerge{
			{Value: []byte(`"2024-05-01"`), Initial: true},
			{Value: []byte(`"2024-05-02"`)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(res.Value) != `"2024-05-02"` {
		t.Fatalf("unexpected merged value %s", res.Value)
	}

	_, err = f.parser.MergeValues(context.Background(), &entity.ValuesMergeQuery{Namespace: "acme", ApplicationName: "bank", EntityType: "acme:ghost"})
	if !errors.Is(err, entity.ErrUnknownEntityType) {
		t.Fatalf("expected unknown entity type, got %v", err)
	}
}
