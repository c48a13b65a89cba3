package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medical-scribe-server/internal/app"
	"github.com/medical-scribe-server/internal/config"
	"github.com/medical-scribe-server/internal/logging"
	"github.com/medical-scribe-server/internal/mcp"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	configManager, err := config.NewManager(os.Getenv("SCRIBE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := configManager.GetConfig()
	// stdout carries the protocol
	logger := logging.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer components.Close()

	if version != "dev" {
		cfg.MCP.ServerVersion = version
	}
	server, err := mcp.NewServer(cfg.MCP, components.MCPDependencies())
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		components.Close()
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		components.Close()
		os.Exit(1)
	}

	logger.Info("Medical scribe MCP server stopped")
}
