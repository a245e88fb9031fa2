package connectrpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

// Client calls a running intentd server; the CLI uses it.
type Client struct {
	parse         *connect.Client[intentdv1.ParseRequest, intentdv1.ParseResponse]
	triggerBuild  *connect.Client[intentdv1.TriggerBuildRequest, intentdv1.TriggerBuildResponse]
	listSentences *connect.Client[intentdv1.ListSentencesRequest, intentdv1.ListSentencesResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(mapping.JSONCodec{})}, opts...)
	return &Client{
		parse:         connect.NewClient[intentdv1.ParseRequest, intentdv1.ParseResponse](httpClient, baseURL+intentdv1.ParserServiceParseProcedure, opts...),
		triggerBuild:  connect.NewClient[intentdv1.TriggerBuildRequest, intentdv1.TriggerBuildResponse](httpClient, baseURL+intentdv1.ModelServiceTriggerBuildProcedure, opts...),
		listSentences: connect.NewClient[intentdv1.ListSentencesRequest, intentdv1.ListSentencesResponse](httpClient, baseURL+intentdv1.SentenceServiceListSentencesProcedure, opts...),
	}
}

func (c *Client) Parse(ctx context.Context, req *intentdv1.ParseRequest) (*intentdv1.ParseResponse, error) {
	res, err := c.parse.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) TriggerBuild(ctx context.Context, req *intentdv1.TriggerBuildRequest) (*intentdv1.TriggerBuildResponse, error) {
	res, err := c.triggerBuild.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) ListSentences(ctx context.Context, req *intentdv1.ListSentencesRequest) (*intentdv1.ListSentencesResponse, error) {
	res, err := c.listSentences.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
