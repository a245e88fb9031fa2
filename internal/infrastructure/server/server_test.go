package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/intentd/internal/adapter/connectrpc"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/usecase"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

type stubParser struct{ err error }

func (s stubParser) Parse(_ context.Context, q *entity.ParseQuery) (*entity.ParseResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entity.ParseResult{Intent: entity.UnknownIntentName, IntentNamespace: q.Namespace}, nil
}

func (s stubParser) MergeValues(context.Context, *entity.ValuesMergeQuery) (*entity.ValuesMergeResult, error) {
	return &entity.ValuesMergeResult{}, nil
}

type stubStats struct{}

func (stubStats) Snapshot() usecase.CacheStats { return usecase.CacheStats{} }

func newTestServer(t *testing.T, parser connectrpc.Parser) (*httptest.Server, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", HTTPPort: 0, CORSOrigins: []string{"https://console.example"}}}
	srv := NewServer(cfg, logger, Services{
		Parser: connectrpc.NewParserServiceServer(parser),
		Health: stubStats{},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hook
}

func TestServer_LogsEachRPC(t *testing.T) {
	ts, hook := newTestServer(t, stubParser{err: entity.ErrInvalidQuery})
	client := connectrpc.NewClient(ts.Client(), ts.URL)

	_, err := client.Parse(context.Background(), &intentdv1.ParseRequest{Namespace: "acme", ApplicationName: "bank"})
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, intentdv1.ParserServiceParseProcedure, entry.Data["procedure"])
	assert.Equal(t, "invalid_argument", entry.Data["status"])
}

func TestServer_CORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, stubParser{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+intentdv1.ParserServiceParseProcedure, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://console.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://console.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDetermineLogLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, determineLogLevel(0, nil))
	assert.Equal(t, logrus.WarnLevel, determineLogLevel(connect.CodeNotFound, errors.New("x")))
	assert.Equal(t, logrus.ErrorLevel, determineLogLevel(connect.CodeInternal, errors.New("x")))
	assert.Equal(t, "ok", statusLabel(0))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&config.Config{Log: config.LogConfig{Level: "debug", Format: "text"}})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	_, err = NewLogger(&config.Config{Log: config.LogConfig{Level: "loud"}})
	assert.Error(t, err)
}
