package connectrpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/entity"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

// Parser is the parse pipeline as seen by the RPC layer.
type Parser interface {
	Parse(ctx context.Context, q *entity.ParseQuery) (*entity.ParseResult, error)
	MergeValues(ctx context.Context, q *entity.ValuesMergeQuery) (*entity.ValuesMergeResult, error)
}

type ParserServiceServer struct {
	uc Parser
}

func NewParserServiceServer(uc Parser) *ParserServiceServer {
	return &ParserServiceServer{uc: uc}
}

func (s *ParserServiceServer) Parse(ctx context.Context, req *connect.Request[intentdv1.ParseRequest]) (*connect.Response[intentdv1.ParseResponse], error) {
	if req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("request required"))
	}
	if req.Msg.Namespace == "" || req.Msg.ApplicationName == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("namespace and application_name required"))
	}

	result, err := s.uc.Parse(ctx, mapping.FromPbParseRequest(req.Msg))
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbParseResponse(result)), nil
}

func (s *ParserServiceServer) MergeValues(ctx context.Context, req *connect.Request[intentdv1.MergeValuesRequest]) (*connect.Response[intentdv1.MergeValuesResponse], error) {
	if req.Msg == nil || req.Msg.EntityType == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("entity_type required"))
	}

	result, err := s.uc.MergeValues(ctx, mapping.FromPbMergeValuesRequest(req.Msg))
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbMergeValuesResponse(result)), nil
}

// NewParserServiceHandler returns the mount path and handler of the parser service.
func NewParserServiceHandler(svc *ParserServiceServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	return serviceMux(intentdv1.ParserServiceName, map[string]http.Handler{
		intentdv1.ParserServiceParseProcedure:       connect.NewUnaryHandler(intentdv1.ParserServiceParseProcedure, svc.Parse, opts...),
		intentdv1.ParserServiceMergeValuesProcedure: connect.NewUnaryHandler(intentdv1.ParserServiceMergeValuesProcedure, svc.MergeValues, opts...),
	})
}
