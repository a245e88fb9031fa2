package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/eslsoft/intentd/internal/adapter/connectrpc"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
)

// Services groups the RPC handlers mounted by the server.
type Services struct {
	Parser    *connectrpc.ParserServiceServer
	Model     *connectrpc.ModelServiceServer
	Sentences *connectrpc.SentenceServiceServer
	Health    connectrpc.CacheStatsSource
}

// Server represents the application server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	logger     logrus.FieldLogger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logrus.Logger, services Services) *Server {
	opts := connect.WithInterceptors(Logger(logger.WithField("component", "rpc")))

	mux := http.NewServeMux()
	mux.Handle(connectrpc.NewParserServiceHandler(services.Parser, opts))
	mux.Handle(connectrpc.NewModelServiceHandler(services.Model, opts))
	mux.Handle(connectrpc.NewSentenceServiceHandler(services.Sentences, opts))
	mux.Handle("/healthz", connectrpc.NewHealthHandler(services.Health))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           h2c.NewHandler(withCORS(cfg.Server.CORSOrigins, mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     logger,
	}
}

func withCORS(origins []string, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: connectcors.AllowedHeaders(),
		ExposedHeaders: connectcors.ExposedHeaders(),
	}).Handler(h)
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves connect (HTTP/1.1 and h2c) until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
