// Package app wires configuration into the services shared by the HTTP
// server, the MCP server and the scribe CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/api"
	"github.com/medical-scribe-server/internal/cache"
	"github.com/medical-scribe-server/internal/database"
	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/mcp"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/repository"
	"github.com/medical-scribe-server/internal/service"
	"github.com/medical-scribe-server/pkg/external"
)

// Options selects which optional components Build sets up
type Options struct {
	// SkipLLM leaves the analyzer, chat and speech unset, for commands
	// that only need the engine or the store
	SkipLLM bool
	// SkipUsage leaves the usage ledger and its database pool unset
	SkipUsage bool
}

// App holds the wired components. Any of LLM, Analyzer, Chat, Cache,
// Store, DB and Usage may be nil when not configured.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Engine   *service.RecommendationEngine
	LLM      *external.OpenAIClient
	Analyzer *service.NoteAnalyzer
	Chat     *service.ChatSupport
	Cache    *cache.RedisNoteCache
	Store    notestore.Store
	DB       *database.DB
	Usage    *repository.UsageRepository

	closers []func() error
}

// Build creates every component the configuration enables. Components
// that fail to connect are logged and left unset, except the note store
// and migrations which are fatal.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Engine: service.NewRecommendationEngine(),
	}

	if !opts.SkipUsage && cfg.Storage.DatabaseURL != "" {
		if err := a.setupDatabase(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	store, err := notestore.Open(cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open note store: %w", err)
	}
	if store != nil {
		a.Store = store
		a.closers = append(a.closers, store.Close)
	}

	if !opts.SkipLLM {
		if err := a.setupLLM(); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	storage := a.Config.Storage

	runner, err := database.NewMigrationRunner(storage.DatabaseURL, storage.MigrationsPath, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()
	if err := runner.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, database.ConfigFromStorage(storage), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect usage database: %w", err)
	}
	a.DB = db
	a.Usage = repository.NewUsageRepository(db.Pool, a.Logger)
	a.closers = append(a.closers, func() error {
		db.Close()
		return nil
	})
	return nil
}

func (a *App) setupLLM() error {
	client, err := external.NewOpenAIClient(a.Config.LLM, a.Logger)
	if errors.Is(err, domain.ErrMissingAPIKey) {
		a.Logger.Warn("No LLM API key configured; analysis, chat support and speech are disabled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.LLM = client

	var shared domain.NoteCache
	if a.Config.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisNoteCache(a.Config.Cache, a.Logger)
		if err != nil {
			a.Logger.WithError(err).Warn("Redis unavailable; using the in-memory analysis cache only")
		} else {
			a.Cache = redisCache
			shared = redisCache
			a.closers = append(a.closers, redisCache.Close)
		}
	}

	analyzer, err := service.NewNoteAnalyzer(service.NoteAnalyzerConfig{
		MaxCacheItems: a.Config.Cache.MaxItems,
	}, client, shared, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create note analyzer: %w", err)
	}
	a.Analyzer = analyzer
	a.Chat = service.NewChatSupport(client, a.Logger)
	return nil
}

// APIDependencies converts the app into HTTP server dependencies, leaving
// interface fields nil for absent components
func (a *App) APIDependencies() api.Dependencies {
	deps := api.Dependencies{
		Engine: a.Engine,
		Checks: make(map[string]api.HealthChecker),
		Logger: a.Logger,
	}
	if a.Analyzer != nil {
		deps.Analyzer = a.Analyzer
	}
	if a.Chat != nil {
		deps.Chat = a.Chat
	}
	if a.LLM != nil {
		deps.Speech = a.LLM
	}
	if a.Store != nil {
		deps.Store = a.Store
		deps.Checks["store"] = a.Store
	}
	if a.Usage != nil {
		deps.Usage = a.Usage
		deps.Checks["database"] = a.DB
	}
	if a.Cache != nil {
		deps.Checks["redis"] = a.Cache
	}
	return deps
}

// MCPDependencies converts the app into MCP server dependencies
func (a *App) MCPDependencies() mcp.Dependencies {
	deps := mcp.Dependencies{
		Engine: a.Engine,
		Logger: a.Logger,
	}
	if a.Analyzer != nil {
		deps.Analyzer = a.Analyzer
	}
	if a.Store != nil {
		deps.Store = a.Store
	}
	if a.Usage != nil {
		deps.Usage = a.Usage
	}
	return deps
}

// Close releases components in reverse creation order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
