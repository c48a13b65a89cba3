package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/api"
	"github.com/medical-scribe-server/internal/app"
	"github.com/medical-scribe-server/internal/config"
	"github.com/medical-scribe-server/internal/logging"
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
	logger := logging.NewFromConfig(cfg.Logging)

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

	api.Version = version
	logger.WithFields(logrus.Fields{
		"version":     version,
		"environment": cfg.Environment,
		"config_file": configManager.ConfigFileUsed(),
	}).Info("Starting medical scribe server")

	server := api.NewServer(configManager, components.APIDependencies())
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		components.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
