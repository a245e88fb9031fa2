package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/repository"
)

func TestInitRepository_LoadsEverything(t *testing.T) {
	store := bankStore()
	store.dictionaries = []entity.DictionaryData{{Namespace: "acme", EntityName: "currency", Values: []entity.DictionaryValue{{Value: "eur"}}}}
	f := newFixture(store)
	f.classifier.builtIns = []string{"duckling:datetime", "duckling:number"}

	if !f.config.InitRepository(context.Background()) {
		t.Fatalf("expected init to succeed")
	}
	stats := f.config.Snapshot()
	if stats.Applications != 1 || stats.Intents != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.EntityTypes != 3 {
		t.Fatalf("expected built-in type to be seeded, got %d entity types", stats.EntityTypes)
	}
	if def, _ := (fakeEntityTypeRepo{store}).GetByName(context.Background(), "duckling:number"); def == nil {
		t.Fatalf("expected built-in type to be saved in the store")
	}
	if len(f.classifier.dictionaries) != 1 {
		t.Fatalf("expected dictionaries to be loaded, got %d", len(f.classifier.dictionaries))
	}
	for _, c := range []repository.Collection{
		repository.CollectionApplications, repository.CollectionIntents, repository.CollectionEntityTypes,
		repository.CollectionNamespaceConfigurations, repository.CollectionDictionaries,
	} {
		if len(f.notifier.listeners[c]) != 1 {
			t.Fatalf("expected one listener on %s", c)
		}
	}
}

func TestInitRepository_FailsWhenStoreDown(t *testing.T) {
	store := bankStore()
	store.fail = true
	f := newFixture(store)
	if f.config.InitRepository(context.Background()) {
		t.Fatalf("expected init to fail")
	}
}

func TestRefresh_OnNotification(t *testing.T) {
	store := bankStore()
	f := newFixture(store)
	ctx := context.Background()
	if !f.config.InitRepository(ctx) {
		t.Fatalf("init failed")
	}

	store.mu.Lock()
	store.intents = append(store.intents, entity.IntentDefinition{ID: "int-loan", Namespace: "acme", Name: "loan", ApplicationIDs: []string{"app-bank"}})
	store.mu.Unlock()
	f.notifier.fire(repository.CollectionIntents)

	intents, err := f.config.IntentsByApplication(ctx, "app-bank")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(intents) != 3 {
		t.Fatalf("expected 3 intents after refresh, got %d", len(intents))
	}
	shared, _ := f.config.SharedNamespaceIntents(ctx, "app-bank")
	if len(shared) != 3 {
		t.Fatalf("expected shared closure to be recomputed, got %d", len(shared))
	}
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	store := bankStore()
	f := newFixture(store)
	ctx := context.Background()
	if !f.config.InitRepository(ctx) {
		t.Fatalf("init failed")
	}
	store.setFail(true)
	if err := f.config.RefreshApplications(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	if err := f.config.RefreshIntents(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	stats := f.config.Snapshot()
	if stats.Applications != 1 || stats.Intents != 2 {
		t.Fatalf("expected previous snapshot to survive, got %+v", stats)
	}
}

func TestApplication_FallsBackToStore(t *testing.T) {
	store := bankStore()
	f := newFixture(store)
	ctx := context.Background()

	app, err := f.config.Application(ctx, "acme", "bank")
	if err != nil || app == nil {
		t.Fatalf("expected store fallback, got %v %v", app, err)
	}
	if store.lookups != 1 {
		t.Fatalf("expected one store lookup, got %d", store.lookups)
	}

	if !f.config.InitRepository(ctx) {
		t.Fatalf("init failed")
	}
	if _, err := f.config.Application(ctx, "acme", "bank"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if store.lookups != 1 {
		t.Fatalf("expected cached read, store lookups=%d", store.lookups)
	}

	missing, err := f.config.Application(ctx, "acme", "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected absent application, got %v %v", missing, err)
	}
}

func TestSharedNamespaceIntents_TransitiveClosure(t *testing.T) {
	store := &fakeStore{
		apps: []entity.ApplicationDefinition{
			{ID: "a1", Namespace: "acme", Name: "bank"},
			{ID: "c1", Namespace: "common", Name: "smalltalk"},
			{ID: "b1", Namespace: "base", Name: "greetings"},
			{ID: "x1", Namespace: "other", Name: "unrelated"},
		},
		intents: []entity.IntentDefinition{
			{ID: "i-balance", Namespace: "acme", Name: "balance", ApplicationIDs: []string{"a1"}},
			{ID: "i-thanks", Namespace: "common", Name: "thanks", ApplicationIDs: []string{"c1"}},
			{ID: "i-hello", Namespace: "base", Name: "hello", ApplicationIDs: []string{"b1", "c1"}},
			{ID: "i-other", Namespace: "other", Name: "other", ApplicationIDs: []string{"x1"}},
		},
		namespaces: []entity.NamespaceConfiguration{
			{Namespace: "acme", Imports: []entity.NamespaceImport{{Namespace: "common", Model: true}, {Namespace: "other", Model: false}}},
			{Namespace: "common", Imports: []entity.NamespaceImport{{Namespace: "base", Model: true}, {Namespace: "acme", Model: true}}},
		},
	}
	f := newFixture(store)
	ctx := context.Background()
	if !f.config.InitRepository(ctx) {
		t.Fatalf("init failed")
	}

	shared, err := f.config.SharedNamespaceIntents(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var ids []string
	for _, i := range shared {
		ids = append(ids, i.ID)
	}
	if fmt.Sprint(ids) != "[i-balance i-thanks i-hello]" {
		t.Fatalf("unexpected closure %v", ids)
	}

	store.mu.Lock()
	store.namespaces = nil
	store.mu.Unlock()
	f.notifier.fire(repository.CollectionNamespaceConfigurations)
	shared, _ = f.config.SharedNamespaceIntents(ctx, "a1")
	if len(shared) != 1 {
		t.Fatalf("expected closure to shrink after namespace refresh, got %d", len(shared))
	}
}

func TestRefresh_ReadersNeverSeeMixedSnapshot(t *testing.T) {
	generation := func(gen int) []entity.ApplicationDefinition {
		apps := make([]entity.ApplicationDefinition, 20)
		for i := range apps {
			apps[i] = entity.ApplicationDefinition{
				ID:         fmt.Sprintf("app-%d", i),
				Namespace:  "acme",
				Name:       fmt.Sprintf("app-%d", i),
				EngineType: fmt.Sprintf("gen-%d", gen),
			}
		}
		return apps
	}
	store := &fakeStore{apps: generation(0)}
	f := newFixture(store)
	ctx := context.Background()
	if err := f.config.RefreshApplications(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				apps := f.config.Applications()
				seen := map[string]struct{}{}
				for _, a := range apps {
					seen[a.EngineType] = struct{}{}
				}
				if len(seen) > 1 || len(apps) != 20 {
					errs <- fmt.Sprintf("torn read: %d apps, generations %v", len(apps), seen)
					return
				}
			}
		}()
	}
	for gen := 1; gen <= 200; gen++ {
		store.mu.Lock()
		store.apps = generation(gen)
		store.mu.Unlock()
		if err := f.config.RefreshApplications(ctx); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
	if got := f.config.Applications()[0].EngineType; got != "gen-200" {
		t.Fatalf("expected last generation, got %s", got)
	}
}

// stallingIntentRepo parks the first List call after it has read the store.
type stallingIntentRepo struct {
	fakeIntentRepo
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *stallingIntentRepo) List(ctx context.Context) ([]entity.IntentDefinition, error) {
	intents, err := r.fakeIntentRepo.List(ctx)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return intents, err
}

func TestRefresh_OlderReadNeverOverwritesNewerSnapshot(t *testing.T) {
	store := bankStore()
	logger := quietLogger()
	intents := &stallingIntentRepo{
		fakeIntentRepo: fakeIntentRepo{store},
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	config := NewConfigurationRepository(Stores{
		Applications: fakeAppRepo{store},
		Intents:      intents,
		EntityTypes:  fakeEntityTypeRepo{store},
		Namespaces:   fakeNamespaceRepo{store},
		Dictionaries: fakeDictionaryRepo{store},
	}, &fakeClassifier{}, async.Inline{Logger: logger}, logger)
	ctx := context.Background()
	if err := config.RefreshApplications(ctx); err != nil {
		t.Fatalf("refresh applications: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = config.RefreshIntents(ctx)
	}()
	<-intents.read

	store.mu.Lock()
	store.intents[0].Name = "balance_v2"
	store.mu.Unlock()

	go func() {
		defer wg.Done()
		_ = config.RefreshIntents(ctx)
	}()
	// give the second refresh the chance to publish before the stalled one resumes
	time.Sleep(20 * time.Millisecond)
	close(intents.release)
	wg.Wait()

	got, err := config.IntentByID(ctx, "int-balance")
	if err != nil || got == nil {
		t.Fatalf("intent lookup failed: %v", err)
	}
	if got.Name != "balance_v2" {
		t.Fatalf("cache kept stale intent %q, store has balance_v2", got.Name)
	}
}

func TestToApplication_ResolvesIntentEntities(t *testing.T) {
	store := bankStore()
	store.entityTypes = append(store.entityTypes, entity.EntityTypeDefinition{
		Name:        "acme:money",
		SubEntities: []entity.EntityDefinition{{EntityTypeName: "acme:amount", Role: "value"}},
	})
	store.intents[1].Entities = append(store.intents[1].Entities,
		entity.EntityDefinition{EntityTypeName: "acme:money", Role: "total"},
		entity.EntityDefinition{EntityTypeName: "acme:ghost", Role: "ghost"},
	)
	f := newFixture(store)
	ctx := context.Background()
	if !f.config.InitRepository(ctx) {
		t.Fatalf("init failed")
	}
	app, _ := f.config.Application(ctx, "acme", "bank")
	model, err := f.config.ToApplication(ctx, app)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if model.Name != "acme:bank" || len(model.Intents) != 2 {
		t.Fatalf("unexpected model %+v", model)
	}
	var transfer = model.Intents[1]
	if transfer.Name != "acme:transfer" {
		transfer = model.Intents[0]
	}
	if len(transfer.Entities) != 3 {
		t.Fatalf("expected unknown entity type to be dropped, got %d entities", len(transfer.Entities))
	}
	money := transfer.Entities[2].EntityType
	if money.Name != "acme:money" || len(money.SubEntities) != 1 || money.SubEntities[0].EntityType.Name != "acme:amount" {
		t.Fatalf("unexpected sub-entity tree %+v", money)
	}
}
