package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/adapter/audit"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/infrastructure/database"
	"github.com/eslsoft/intentd/internal/repository"
	"github.com/eslsoft/intentd/internal/usecase"
)

func provideAuditStore(db *database.AuditDB) *audit.Store {
	return audit.NewStore(db.DB, db.Driver)
}

func provideExecutor(cfg *config.Config, logger logrus.FieldLogger) (*async.Pool, func()) {
	pool := async.NewPool(logger, cfg.Executor.Workers, cfg.Executor.QueueSize)
	return pool, pool.Close
}

func provideParserOptions(cfg *config.Config) usecase.ParserOptions {
	return usecase.ParserOptions{
		DefaultLocale:     entity.ParseLocale(cfg.NLP.DefaultLocale),
		DefaultEngineType: cfg.NLP.EngineType,
	}
}

func provideBuildWorker(
	cfg *config.Config,
	updater *usecase.ModelUpdaterService,
	configuration *usecase.ConfigurationRepository,
	triggers repository.BuildTriggerRepository,
	sentences repository.SentenceRepository,
	logger logrus.FieldLogger,
) *usecase.ModelBuildWorker {
	return usecase.NewModelBuildWorker(updater, configuration, triggers, sentences, cfg.Build.Batch, logger)
}
