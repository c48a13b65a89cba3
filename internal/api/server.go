// Package api exposes the scribe services over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/middleware"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/service"
)

// Version is reported by the health endpoint; overridden at build time
var Version = "1.0.0"

// Analyzer generates clinical notes from transcripts
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error)
	AnalyzeStream(ctx context.Context, req service.AnalyzeRequest, onChunk func(string) error) (*service.AnalyzeResult, error)
}

// ChatResponder answers chat-support questions
type ChatResponder interface {
	Ask(ctx context.Context, req service.ChatSupportRequest) (*service.ChatSupportReply, error)
}

// HealthChecker is implemented by backing services reported on /health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the services behind the routes. LLM-backed services,
// the store and the usage ledger are optional; their routes answer 503
// when absent.
type Dependencies struct {
	Analyzer Analyzer
	Chat     ChatResponder
	Speech   domain.SpeechSynthesizer
	Engine   *service.RecommendationEngine
	Store    notestore.Store
	Usage    domain.UsageLedger
	Checks   map[string]HealthChecker
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Engine == nil {
		deps.Engine = service.NewRecommendationEngine()
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
		logger:        deps.Logger,
	}

	server.setupRoutes()

	return server
}

// Handler returns the router, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"address": addr,
			"tls":     cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	timeout := middleware.RequestTimeout(s.configManager.GetServerConfig().RequestTimeout)

	v1 := s.router.Group("/api/v1")
	{
		// analyze applies the timeout itself for non-streaming requests
		v1.POST("/analyze", s.handleAnalyze)
		v1.GET("/ws/recommendations", s.handleRecommendationSocket)

		bounded := v1.Group("", timeout)
		bounded.GET("/models", s.handleModels)
		bounded.POST("/recommendations", s.handleRecommendations)
		bounded.POST("/chat-support", s.handleChatSupport)
		bounded.POST("/tts", s.handleTTS)
		bounded.GET("/usage", s.handleUsage)

		notes := bounded.Group("/notes")
		{
			notes.GET("", s.handleListNotes)
			notes.GET("/export", s.handleExportNotes)
			notes.POST("/import", s.handleImportNotes)
			notes.GET("/:id", s.handleGetNote)
			notes.GET("/:id/export", s.handleExportNote)
			notes.DELETE("/:id", s.handleDeleteNote)
		}
	}
}

// handleHealth reports the status of every registered backing service
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, checker := range s.deps.Checks {
		if err := checker.Health(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
		"features": gin.H{
			"llm":     s.deps.Analyzer != nil,
			"storage": s.deps.Store != nil,
			"usage":   s.deps.Usage != nil,
		},
	})
}
