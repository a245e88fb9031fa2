package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/adapter/audit"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/infrastructure/server"
	"github.com/eslsoft/intentd/internal/repository"
	"github.com/eslsoft/intentd/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config        *config.Config
	Logger        *logrus.Logger
	Pool          *pgxpool.Pool
	AuditStore    *audit.Store
	Notifier      repository.ChangeNotifier
	Configuration *usecase.ConfigurationRepository
	Parser        *usecase.ParserService
	Updater       *usecase.ModelUpdaterService
	Worker        *usecase.ModelBuildWorker
	Sentences     repository.SentenceRepository
	Server        *server.Server
}
