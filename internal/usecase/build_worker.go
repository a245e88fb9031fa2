package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

// ModelBuildWorker drains durable build triggers.
type ModelBuildWorker struct {
	updater   *ModelUpdaterService
	config    *ConfigurationRepository
	triggers  repository.BuildTriggerRepository
	sentences repository.SentenceRepository
	batch     int32
	logger    logrus.FieldLogger
	clock     func() time.Time
}

func NewModelBuildWorker(
	updater *ModelUpdaterService,
	config *ConfigurationRepository,
	triggers repository.BuildTriggerRepository,
	sentences repository.SentenceRepository,
	batch int32,
	logger logrus.FieldLogger,
) *ModelBuildWorker {
	if batch <= 0 {
		batch = 10
	}
	return &ModelBuildWorker{
		updater:   updater,
		config:    config,
		triggers:  triggers,
		sentences: sentences,
		batch:     batch,
		logger:    logger.WithField("component", "build_worker"),
		clock:     time.Now,
	}
}

// Run processes pending triggers every interval until ctx is cancelled.
func (w *ModelBuildWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.WithError(err).Error("build round failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of triggers and returns how many were completed.
// A trigger whose build failed stays queued for the next round.
func (w *ModelBuildWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.triggers.ListPending(ctx, w.batch)
	if err != nil {
		return 0, fmt.Errorf("list build triggers: %w", err)
	}
	done := 0
	var errs []error
	for _, trigger := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := w.process(ctx, trigger); err != nil {
			errs = append(errs, fmt.Errorf("trigger %s: %w", trigger.ID, err))
			continue
		}
		if err := w.triggers.Delete(ctx, trigger.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete trigger %s: %w", trigger.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (w *ModelBuildWorker) process(ctx context.Context, trigger entity.ModelBuildTrigger) error {
	app, err := w.config.ApplicationByID(ctx, trigger.ApplicationID)
	if err != nil {
		return err
	}
	if app == nil {
		w.logger.WithField("app_id", trigger.ApplicationID).Warn("build trigger for unknown application dropped")
		return nil
	}
	locales := app.SupportedLocales
	if trigger.Language != entity.LocaleUnspecified {
		locales = []entity.Locale{trigger.Language}
	}
	intents, err := w.config.IntentsByApplication(ctx, app.ID)
	if err != nil {
		return err
	}
	entityTypes := lo.Uniq(lo.FlatMap(intents, func(i entity.IntentDefinition, _ int) []string {
		return lo.Map(i.Entities, func(e entity.EntityDefinition, _ int) string { return e.EntityTypeName })
	}))

	for _, locale := range locales {
		// sentences validated after this point were not in the training samples
		startedAt := w.clock()
		if err := w.updater.UpdateIntentsModelForApplication(ctx, app, locale, app.EngineType, false); err != nil {
			return err
		}
		for _, intent := range intents {
			if err := w.updater.UpdateEntityModelForIntent(ctx, app, intent.ID, locale, app.EngineType, false); err != nil {
				return err
			}
		}
		for _, name := range entityTypes {
			def, err := w.config.EntityTypeByName(ctx, name)
			if err != nil {
				return err
			}
			if err := w.updater.UpdateEntityModelForEntityType(ctx, app, def, locale, app.EngineType, false); err != nil {
				return err
			}
		}
		promoted, err := w.sentences.UpdateStatus(ctx,
			&repository.SentenceQuery{ApplicationID: app.ID, Language: locale, UpdatedBefore: startedAt},
			entity.SentenceStatusValidated, entity.SentenceStatusModel)
		if err != nil {
			return fmt.Errorf("promote sentences: %w", err)
		}
		w.logger.WithFields(logrus.Fields{"app": app.QualifiedName(), "language": locale, "promoted": promoted}).
			Info("models rebuilt")
	}
	return nil
}
