// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trade-history-sync/internal/adapter"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/migration"
	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/ratelimit"
	"github.com/trade-history-sync/internal/service"
	"github.com/trade-history-sync/internal/types"
)

// Service interfaces for dependency injection and testing

// SyncServiceInterface defines the synchronization operations
type SyncServiceInterface interface {
	Synchronize(ctx context.Context, league string, l types.Locale) (*types.SyncResult, error)
	Credentials(ctx context.Context, l types.Locale) ([]types.CredentialStatus, error)
}

// HistoryServiceInterface defines the history read operations
type HistoryServiceInterface interface {
	History(ctx context.Context, q *service.HistoryQuery) (*service.HistoryPage, error)
}

// MigratorInterface runs the legacy partition migration
type MigratorInterface interface {
	MigrateIfNeeded(ctx context.Context, l types.Locale, league string) migration.Result
}

// LeagueLister loads the leagues offered by the trade site
type LeagueLister interface {
	FetchLeagues(ctx context.Context, l types.Locale) ([]models.League, error)
}

// FeedHealthReporter exposes the remote feed request history
type FeedHealthReporter interface {
	Health() *adapter.FeedHealth
}

// GateStatsReporter exposes cooldown gate decisions
type GateStatsReporter interface {
	Stats() ratelimit.GateStats
}

// Dependencies groups the collaborators of the server. Feed and Gate are optional.
type Dependencies struct {
	Sync     SyncServiceInterface
	History  HistoryServiceInterface
	Migrator MigratorInterface
	Leagues  LeagueLister
	Feed     FeedHealthReporter
	Gate     GateStatsReporter
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	deps       Dependencies
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int // per client
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		logger: logger,
		config: config,
	}

	s.setupRouter()

	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/leagues", s.handleLeagues).Methods("GET")
	api.HandleFunc("/leagues/{league}/sync", s.handleSync).Methods("POST", "OPTIONS")
	api.HandleFunc("/leagues/{league}/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/credentials", s.handleCredentials).Methods("GET")

	// Subrouters answer misses themselves; the parent's handlers never see them.
	api.NotFoundHandler = http.HandlerFunc(handleNotFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
}

// handleHealth reports process liveness, feed health and gate decisions.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	body := map[string]interface{}{
		"service": "trade-history-sync",
	}

	if s.deps.Feed != nil {
		feed := s.deps.Feed.Health()
		body["feed"] = feed
		if !feed.IsHealthy {
			status = "degraded"
		}
	}
	if s.deps.Gate != nil {
		body["gate"] = s.deps.Gate.Stats()
	}
	body["status"] = status

	respondJSON(w, http.StatusOK, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
