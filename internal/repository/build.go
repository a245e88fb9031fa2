package repository

import (
	"context"

	"github.com/eslsoft/intentd/internal/entity"
)

// ModelBuildRepository stores build audit records.
type ModelBuildRepository interface {
	Save(ctx context.Context, build *entity.ModelBuild) error
	ListByApplication(ctx context.Context, applicationID string, limit int32) ([]entity.ModelBuild, error)
}

// ParseLogRepository stores parse request logs.
type ParseLogRepository interface {
	Save(ctx context.Context, log *entity.ParseRequestLog) error
	List(ctx context.Context, filter entity.ParseLogFilter) ([]entity.ParseRequestLog, error)
}

// BuildTriggerRepository is the durable queue of build requests.
type BuildTriggerRepository interface {
	Save(ctx context.Context, trigger *entity.ModelBuildTrigger) error
	ListPending(ctx context.Context, limit int32) ([]entity.ModelBuildTrigger, error)
	Delete(ctx context.Context, id string) error
}
