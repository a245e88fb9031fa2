//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/adapter/audit"
	"github.com/eslsoft/intentd/internal/adapter/connectrpc"
	"github.com/eslsoft/intentd/internal/adapter/nlpclient"
	pgrepo "github.com/eslsoft/intentd/internal/adapter/repository"
	"github.com/eslsoft/intentd/internal/infrastructure/async"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/infrastructure/database"
	"github.com/eslsoft/intentd/internal/infrastructure/server"
	"github.com/eslsoft/intentd/internal/nlp"
	"github.com/eslsoft/intentd/internal/repository"
	"github.com/eslsoft/intentd/internal/usecase"
)

var configSet = wire.NewSet(
	config.Load,
)

var loggerSet = wire.NewSet(
	server.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
)

var databaseSet = wire.NewSet(
	database.NewConnection,
	database.NewAuditDB,
	wire.Bind(new(pgrepo.DBTX), new(*pgxpool.Pool)),
	provideAuditStore,
)

var repositorySet = wire.NewSet(
	pgrepo.NewApplicationRepository,
	pgrepo.NewIntentRepository,
	pgrepo.NewEntityTypeRepository,
	pgrepo.NewNamespaceConfigurationRepository,
	pgrepo.NewDictionaryRepository,
	pgrepo.NewSentenceRepository,
	pgrepo.NewBuildTriggerRepository,
	pgrepo.NewPgNotifier,
	wire.Bind(new(repository.ChangeNotifier), new(*pgrepo.PgNotifier)),
	audit.NewParseLogRepository,
	audit.NewModelBuildRepository,
)

var engineSet = wire.NewSet(
	nlpclient.New,
	wire.Bind(new(nlp.Classifier), new(*nlpclient.Client)),
	provideExecutor,
	wire.Bind(new(async.Executor), new(*async.Pool)),
)

var usecaseSet = wire.NewSet(
	wire.Struct(new(usecase.Stores), "*"),
	usecase.NewConfigurationRepository,
	provideParserOptions,
	usecase.NewParserService,
	usecase.NewModelUpdaterService,
	provideBuildWorker,
)

var serviceSet = wire.NewSet(
	connectrpc.NewParserServiceServer,
	connectrpc.NewModelServiceServer,
	connectrpc.NewSentenceServiceServer,
	wire.Bind(new(connectrpc.Parser), new(*usecase.ParserService)),
	wire.Bind(new(connectrpc.ApplicationResolver), new(*usecase.ConfigurationRepository)),
	wire.Bind(new(connectrpc.BuildTrigger), new(*usecase.ModelUpdaterService)),
	wire.Bind(new(connectrpc.CacheStatsSource), new(*usecase.ConfigurationRepository)),
)

var serverSet = wire.NewSet(
	wire.Struct(new(server.Services), "*"),
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		loggerSet,
		databaseSet,
		repositorySet,
		engineSet,
		usecaseSet,
		serviceSet,
		serverSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
