package connectrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/entity"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

// ApplicationResolver finds an application by its qualified name; nil when absent.
type ApplicationResolver interface {
	Application(ctx context.Context, namespace, name string) (*entity.ApplicationDefinition, error)
}

// BuildTrigger queues durable model builds.
type BuildTrigger interface {
	TriggerBuild(ctx context.Context, appID string, language entity.Locale) (*entity.ModelBuildTrigger, error)
}

type ModelServiceServer struct {
	apps    ApplicationResolver
	trigger BuildTrigger
}

func NewModelServiceServer(apps ApplicationResolver, trigger BuildTrigger) *ModelServiceServer {
	return &ModelServiceServer{apps: apps, trigger: trigger}
}

func (s *ModelServiceServer) TriggerBuild(ctx context.Context, req *connect.Request[intentdv1.TriggerBuildRequest]) (*connect.Response[intentdv1.TriggerBuildResponse], error) {
	if req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("request required"))
	}
	app, err := resolveApplication(ctx, s.apps, req.Msg.Namespace, req.Msg.ApplicationName)
	if err != nil {
		return nil, err
	}

	language := entity.ParseLocale(req.Msg.Language)
	if req.Msg.Language != "" && language == entity.LocaleUnspecified {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid language %q", req.Msg.Language))
	}
	trigger, err := s.trigger.TriggerBuild(ctx, app.ID, language)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbTriggerBuildResponse(trigger)), nil
}

func resolveApplication(ctx context.Context, apps ApplicationResolver, namespace, name string) (*entity.ApplicationDefinition, error) {
	if namespace == "" || name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("namespace and application_name required"))
	}
	app, err := apps.Application(ctx, namespace, name)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	if app == nil {
		return nil, mapping.ToConnectError(fmt.Errorf("%w: %s", entity.ErrUnknownApplication, entity.QualifiedName(namespace, name)))
	}
	return app, nil
}

func NewModelServiceHandler(svc *ModelServiceServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	return serviceMux(intentdv1.ModelServiceName, map[string]http.Handler{
		intentdv1.ModelServiceTriggerBuildProcedure: connect.NewUnaryHandler(intentdv1.ModelServiceTriggerBuildProcedure, svc.TriggerBuild, opts...),
	})
}
