// Package main is the scribe CLI: offline recommendations, note history
// export and import, and Claude Desktop setup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medical-scribe-server/internal/config"
	"github.com/medical-scribe-server/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configManager *config.Manager
	logger        *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Clinical note tooling for the medical scribe server",
	Long: `scribe works with structured SOAP clinical notes produced by the medical
scribe server. It generates recommendations for a note without calling the
LLM, exports and imports the local note history, and registers the MCP
server with Claude Desktop.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		cfgFile, _ := cmd.Flags().GetString("config")
		if cfgFile == "" {
			cfgFile = os.Getenv("SCRIBE_CONFIG")
		}
		m, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		configManager = m

		cfg := m.GetConfig()
		level := cfg.Logging.Level
		if flagLevel, _ := cmd.Flags().GetString("log-level"); flagLevel != "" {
			level = flagLevel
		}
		logger = logging.NewWithOutput(level, "text", cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/medical-scribe/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
