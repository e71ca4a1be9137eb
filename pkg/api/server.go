// Package api exposes the HTTP and WebSocket surface: chat, privacy
// controls, memory statistics and operational endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/governance"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/observe"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
	"github.com/thalamus-ai/thalamus/pkg/privacy"
)

// Engine is the governance pipeline seam.
type Engine interface {
	ProcessInput(ctx context.Context, input, userID string, hints map[string]string) (*governance.Response, error)
	Plan(ctx context.Context, input string) (governance.Classification, []governance.Recommendation)
	Clear(userID string)
}

// Backends exposes orchestrator introspection.
type Backends interface {
	Status() orchestrator.StatusReport
	Backends(ctx context.Context) []llm.BackendStatus
}

// PrivacyController is the privacy state machine seam.
type PrivacyController interface {
	Snapshot() privacy.Snapshot
	RequestCloudAccess(ctx context.Context, provider, reason string) bool
	DisableProvider(provider string)
	DisableAllCloud()
}

// MemoryReader reports memory layer statistics.
type MemoryReader interface {
	Stats(ctx context.Context) (map[string]int, error)
}

// History reads stored conversations and agent performance.
type History interface {
	ConversationContext(ctx context.Context, limit int) ([]*brain.Turn, error)
	AgentPerformance(ctx context.Context) (map[string]*brain.SkillStats, error)
}

// Server owns the Echo router and the underlying HTTP server.
type Server struct {
	cfg      *config.ServerConfig
	engine   Engine
	backends Backends
	privacy  PrivacyController
	memory   MemoryReader
	history  History
	dbClient *database.Client
	metrics  *observe.Metrics
	logger   *slog.Logger

	echo       *echo.Echo
	httpServer *http.Server

	// inflight bounds concurrently processed chat requests; see
	// ServerConfig.MaxInflight.
	inflight chan struct{}
}

// NewServer builds the router and wires every route. Any of metrics may be
// nil (no counters recorded); the rest must be non-nil.
func NewServer(cfg *config.ServerConfig, engine Engine, backends Backends, priv PrivacyController, mem MemoryReader, history History, dbClient *database.Client, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	maxInflight := cfg.MaxInflight
	if maxInflight <= 0 {
		maxInflight = config.DefaultServerConfig().MaxInflight
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		backends: backends,
		privacy:  priv,
		memory:   mem,
		history:  history,
		dbClient: dbClient,
		metrics:  metrics,
		logger:   logger,
		inflight: make(chan struct{}, maxInflight),
	}

	e := echo.New()
	e.Use(securityHeaders())
	e.Use(corsAllowAll())
	e.Use(recoverPanics(logger))
	e.Use(requestTiming(metrics, logger))

	e.POST("/chat", s.chatHandler)
	e.POST("/clear", s.clearHandler)

	e.GET("/api/privacy-status", s.privacyStatusHandler)
	e.POST("/api/request-cloud-access", s.requestCloudAccessHandler)
	e.POST("/api/disable-cloud", s.disableCloudHandler)

	e.GET("/api/brain-stats", s.brainStatsHandler)
	e.GET("/api/task-history", s.taskHistoryHandler)
	e.GET("/api/agent-performance", s.agentPerformanceHandler)
	e.GET("/api/orchestrator-status", s.orchestratorStatusHandler)

	e.GET("/healthz", s.healthHandler)
	e.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	e.GET("/ws/chat", s.wsChatHandler)

	s.echo = e
	return s
}

// Handler returns the complete HTTP handler, including the gzip layer.
// Exposed for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return gzipResponses(s.echo, s.cfg.GzipMinBytes)
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called. A closed listener after Shutdown returns nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains inflight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultServerConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// acquire claims an inflight slot; it returns false when the server is at
// capacity.
func (s *Server) acquire() bool {
	select {
	case s.inflight <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	<-s.inflight
}
