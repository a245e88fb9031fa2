package connectrpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

type SentenceServiceServer struct {
	apps      ApplicationResolver
	sentences repository.SentenceRepository
}

func NewSentenceServiceServer(apps ApplicationResolver, sentences repository.SentenceRepository) *SentenceServiceServer {
	return &SentenceServiceServer{apps: apps, sentences: sentences}
}

func (s *SentenceServiceServer) ListSentences(ctx context.Context, req *connect.Request[intentdv1.ListSentencesRequest]) (*connect.Response[intentdv1.ListSentencesResponse], error) {
	if req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("request required"))
	}
	msg := req.Msg
	app, err := resolveApplication(ctx, s.apps, msg.Namespace, msg.ApplicationName)
	if err != nil {
		return nil, err
	}

	query := &repository.ListSentenceQuery{
		ApplicationID: app.ID,
		Pagination:    convertPagination(msg.Pagination),
		FilterOrder: repository.FilterOrder{
			Filter:  msg.GetFilter(),
			OrderBy: msg.GetOrderBy(),
		},
	}
	items, total, err := s.sentences.List(ctx, query)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&intentdv1.ListSentencesResponse{
		Sentences: lo.Map(items, func(item entity.ClassifiedSentence, _ int) intentdv1.Sentence { return mapping.ToPbSentence(item) }),
		Pagination: intentdv1.PaginationResponse{
			PageNo:   query.PageNo,
			PageSize: query.PageSize,
			Total:    total,
		},
	}), nil
}

func NewSentenceServiceHandler(svc *SentenceServiceServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	return serviceMux(intentdv1.SentenceServiceName, map[string]http.Handler{
		intentdv1.SentenceServiceListSentencesProcedure: connect.NewUnaryHandler(intentdv1.SentenceServiceListSentencesProcedure, svc.ListSentences, opts...),
	})
}
