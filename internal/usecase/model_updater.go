package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
)

var trainingStatuses = []entity.SentenceStatus{entity.SentenceStatusModel, entity.SentenceStatusValidated}

// ModelUpdaterService runs and audits model builds.
type ModelUpdaterService struct {
	config     *ConfigurationRepository
	sentences  repository.SentenceRepository
	builds     repository.ModelBuildRepository
	triggers   repository.BuildTriggerRepository
	classifier nlp.Classifier
	logger     logrus.FieldLogger
	clock      func() time.Time
}

func NewModelUpdaterService(
	config *ConfigurationRepository,
	sentences repository.SentenceRepository,
	builds repository.ModelBuildRepository,
	triggers repository.BuildTriggerRepository,
	classifier nlp.Classifier,
	logger logrus.FieldLogger,
) *ModelUpdaterService {
	return &ModelUpdaterService{
		config:     config,
		sentences:  sentences,
		builds:     builds,
		triggers:   triggers,
		classifier: classifier,
		logger:     logger.WithField("component", "model_updater"),
		clock:      time.Now,
	}
}

// TriggerBuild records a durable build request. An empty language means every supported locale.
func (u *ModelUpdaterService) TriggerBuild(ctx context.Context, appID string, language entity.Locale) (*entity.ModelBuildTrigger, error) {
	if appID == "" {
		return nil, entity.ErrInvalidQuery
	}
	trigger := &entity.ModelBuildTrigger{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Language:      language,
		CreatedAt:     u.clock(),
	}
	if err := u.triggers.Save(ctx, trigger); err != nil {
		return nil, fmt.Errorf("save build trigger: %w", err)
	}
	u.logger.WithFields(logrus.Fields{"app_id": appID, "language": language}).Info("build triggered")
	return trigger, nil
}

// UpdateIntentsModelForApplication rebuilds the intent model from model and validated sentences,
// including those of intents shared through namespace imports.
func (u *ModelUpdaterService) UpdateIntentsModelForApplication(ctx context.Context, app *entity.ApplicationDefinition, language entity.Locale, engineType string, onlyIfNotExists bool) error {
	build := entity.ModelBuild{ApplicationID: app.ID, Language: language, Type: entity.ModelBuildTypeIntent}
	return u.logBuild(ctx, build, func() (int, error) {
		intents, err := u.config.SharedNamespaceIntents(ctx, app.ID)
		if err != nil {
			return 0, err
		}
		sentences, err := u.sentences.Search(ctx, &repository.SentenceQuery{
			ApplicationID: app.ID,
			Language:      language,
			Statuses:      trainingStatuses,
		})
		if err != nil {
			return 0, fmt.Errorf("search sentences: %w", err)
		}
		foreign := lo.FilterMap(intents, func(i entity.IntentDefinition, _ int) (string, bool) {
			return i.ID, !lo.Contains(i.ApplicationIDs, app.ID)
		})
		if len(foreign) > 0 {
			shared, err := u.sentences.Search(ctx, &repository.SentenceQuery{
				Language:  language,
				Statuses:  trainingStatuses,
				IntentIDs: foreign,
			})
			if err != nil {
				return 0, fmt.Errorf("search shared sentences: %w", err)
			}
			sentences = dedupeSentences(append(sentences, shared...))
		}
		samples := u.toSamples(ctx, sentences)
		if len(samples) == 0 {
			return 0, nil
		}
		bc, err := u.buildContext(ctx, app, language, engineType, onlyIfNotExists, false)
		if err != nil {
			return 0, err
		}
		return len(samples), u.classifier.UpdateIntentModel(ctx, bc, samples)
	})
}

// UpdateEntityModelForIntent rebuilds one intent's entity model. Sentences of its shared intents are
// included only when every entity they carry is declared by the target intent.
func (u *ModelUpdaterService) UpdateEntityModelForIntent(ctx context.Context, app *entity.ApplicationDefinition, intentID string, language entity.Locale, engineType string, onlyIfNotExists bool) error {
	intent, err := u.config.IntentByID(ctx, intentID)
	if err != nil {
		return err
	}
	if intent == nil {
		return fmt.Errorf("%w: %s", entity.ErrUnknownIntent, intentID)
	}
	build := entity.ModelBuild{ApplicationID: app.ID, Language: language, Type: entity.ModelBuildTypeIntentEntities, IntentID: intentID}
	return u.logBuild(ctx, build, func() (int, error) {
		sentences, err := u.sentences.Search(ctx, &repository.SentenceQuery{
			ApplicationID: app.ID,
			Language:      language,
			Statuses:      trainingStatuses,
			IntentIDs:     []string{intentID},
		})
		if err != nil {
			return 0, fmt.Errorf("search sentences: %w", err)
		}
		if len(intent.SharedIntents) > 0 {
			shared, err := u.sentences.Search(ctx, &repository.SentenceQuery{
				Language:  language,
				Statuses:  trainingStatuses,
				IntentIDs: intent.SharedIntents,
			})
			if err != nil {
				return 0, fmt.Errorf("search shared sentences: %w", err)
			}
			shared = lo.Filter(shared, func(s entity.ClassifiedSentence, _ int) bool {
				return lo.EveryBy(s.Classification.Entities, func(e entity.ClassifiedEntity) bool {
					return intent.HasEntity(e.Ref())
				})
			})
			sentences = dedupeSentences(append(sentences, shared...))
		}
		samples := u.toSamples(ctx, sentences)
		if len(samples) == 0 {
			return 0, nil
		}
		bc, err := u.buildContext(ctx, app, language, engineType, onlyIfNotExists, false)
		if err != nil {
			return 0, err
		}
		return len(samples), u.classifier.UpdateEntityModelForIntent(ctx, bc, u.config.ToIntent(ctx, *intent), samples)
	})
}

// UpdateEntityModelForEntityType rebuilds an entity type model across the application's namespace.
// It is a no-op when the type cannot be resolved.
func (u *ModelUpdaterService) UpdateEntityModelForEntityType(ctx context.Context, app *entity.ApplicationDefinition, def *entity.EntityTypeDefinition, language entity.Locale, engineType string, onlyIfNotExists bool) error {
	if def == nil {
		return nil
	}
	resolved, err := u.config.EntityTypeByName(ctx, def.Name)
	if err != nil {
		return err
	}
	if resolved == nil {
		return nil
	}
	entityType := u.config.ToEntityType(resolved)
	build := entity.ModelBuild{ApplicationID: app.ID, Language: language, Type: entity.ModelBuildTypeEntityTypeEntities, EntityTypeName: def.Name}
	return u.logBuild(ctx, build, func() (int, error) {
		sentences, err := u.sentences.Search(ctx, &repository.SentenceQuery{
			Namespace:  app.Namespace,
			Language:   language,
			Statuses:   trainingStatuses,
			EntityType: def.Name,
		})
		if err != nil {
			return 0, fmt.Errorf("search sentences: %w", err)
		}
		samples := u.toSamples(ctx, sentences)
		if len(samples) == 0 {
			return 0, nil
		}
		bc, err := u.buildContext(ctx, app, language, engineType, onlyIfNotExists, true)
		if err != nil {
			return 0, err
		}
		return len(samples), u.classifier.UpdateEntityModelForEntityType(ctx, bc, entityType, samples)
	})
}

// DeleteOrphans asks the classifier to drop models of applications, intents and entity types no longer cached.
func (u *ModelUpdaterService) DeleteOrphans(ctx context.Context) error {
	filter := nlp.OrphanFilter{
		ApplicationsAndIntents: map[string][]string{},
		EntityTypes:            u.config.EntityTypes().Names(),
	}
	for _, app := range u.config.Applications() {
		intents, err := u.config.IntentsByApplication(ctx, app.ID)
		if err != nil {
			return err
		}
		filter.ApplicationsAndIntents[app.QualifiedName()] = lo.Map(intents, func(i entity.IntentDefinition, _ int) string {
			return i.QualifiedName()
		})
	}
	if err := u.classifier.DeleteOrphans(ctx, filter); err != nil {
		return fmt.Errorf("delete orphans: %w", err)
	}
	return nil
}

// logBuild runs builder and records the attempt when it processed sentences or failed.
// The builder error is returned; a failure to save the record is only logged.
func (u *ModelUpdaterService) logBuild(ctx context.Context, build entity.ModelBuild, builder func() (int, error)) error {
	start := u.clock()
	build.ID = ulid.Make().String()
	build.Date = start

	n, err := builder()
	build.NbSentences = n
	if err != nil {
		build.Error = true
		build.ErrorMessage = err.Error()
	}
	build.Duration = u.clock().Sub(start)

	entry := u.logger.WithFields(logrus.Fields{
		"app_id":    build.ApplicationID,
		"language":  build.Language,
		"type":      build.Type,
		"sentences": build.NbSentences,
		"duration":  build.Duration,
	})
	if err != nil {
		entry.WithError(err).Error("model build failed")
	} else {
		entry.Debug("model build done")
	}

	if build.NbSentences > 0 || build.Error {
		if saveErr := u.builds.Save(ctx, &build); saveErr != nil {
			entry.WithError(saveErr).Error("save model build record")
		}
	}
	return err
}

func (u *ModelUpdaterService) buildContext(ctx context.Context, app *entity.ApplicationDefinition, language entity.Locale, engineType string, onlyIfNotExists, wholeNamespace bool) (nlp.BuildContext, error) {
	model, err := u.config.ToApplication(ctx, app)
	if err != nil {
		return nlp.BuildContext{}, err
	}
	return nlp.BuildContext{
		Application:          model,
		Language:             language,
		EngineType:           firstNonEmpty(engineType, app.EngineType),
		OnlyIfModelNotExists: onlyIfNotExists,
		WholeNamespace:       wholeNamespace,
	}, nil
}

// toSamples converts sentences to training samples. Sentences whose intent is gone are skipped.
func (u *ModelUpdaterService) toSamples(ctx context.Context, sentences []entity.ClassifiedSentence) []nlp.SampleExpression {
	intents := map[string]*nlp.Intent{}
	samples := make([]nlp.SampleExpression, 0, len(sentences))
	for _, s := range sentences {
		intentID := s.Classification.IntentID
		intent, ok := intents[intentID]
		if !ok {
			intent = u.resolveIntent(ctx, intentID)
			intents[intentID] = intent
		}
		if intent == nil {
			u.logger.WithField("intent_id", intentID).Warn("sentence references unknown intent, skipped")
			continue
		}
		samples = append(samples, nlp.SampleExpression{
			Text:     s.Text,
			Intent:   *intent,
			Entities: u.toSampleEntities(s.Classification.Entities),
			Language: s.Language,
		})
	}
	return samples
}

func (u *ModelUpdaterService) resolveIntent(ctx context.Context, intentID string) *nlp.Intent {
	if intentID == entity.UnknownIntentName {
		return &nlp.Intent{Name: entity.UnknownIntentName}
	}
	def, err := u.config.IntentByID(ctx, intentID)
	if err != nil || def == nil {
		return nil
	}
	intent := u.config.ToIntent(ctx, *def)
	return &intent
}

func (u *ModelUpdaterService) toSampleEntities(entities []entity.ClassifiedEntity) []nlp.SampleEntity {
	return lo.Map(entities, func(e entity.ClassifiedEntity, _ int) nlp.SampleEntity {
		entityType := u.config.EntityTypes().Resolve(e.Type)
		if entityType == nil {
			entityType = &nlp.EntityType{Name: e.Type}
		}
		return nlp.SampleEntity{
			Definition:  nlp.Entity{EntityType: entityType, Role: e.Role},
			Start:       e.Start,
			End:         e.End,
			SubEntities: u.toSampleEntities(e.SubEntities),
		}
	})
}

func dedupeSentences(in []entity.ClassifiedSentence) []entity.ClassifiedSentence {
	return lo.UniqBy(in, func(s entity.ClassifiedSentence) string {
		return s.ApplicationID + "\x00" + string(s.Language) + "\x00" + s.Text
	})
}
