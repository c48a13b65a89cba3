package main

import (
	"github.com/spf13/cobra"

	"github.com/medical-scribe-server/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register the MCP server with Claude Desktop",
}

var setupClaudeDesktopCmd = &cobra.Command{
	Use:   "claude-desktop",
	Short: "Add the medical-scribe entry to the Claude Desktop config",
	Long: `claude-desktop adds or replaces the medical-scribe server in
claude_desktop_config.json, pointing it at the mcp-server binary and the
note data directory (SCRIBE_DATA_DIR). Other servers and settings in the
file are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := newSetupCLI(cmd)
		if err != nil {
			return err
		}

		binary, _ := cmd.Flags().GetString("binary")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		yes, _ := cmd.Flags().GetBool("yes")
		if dataDir == "" {
			dataDir = configManager.GetStorageConfig().DataDir
		}

		return cli.ConfigureClaudeDesktop(setup.Options{BinaryPath: binary, DataDir: dataDir}, yes)
	},
}

var setupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Claude Desktop registration and data directory status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := newSetupCLI(cmd)
		if err != nil {
			return err
		}
		return cli.ShowStatus()
	},
}

func init() {
	setupCmd.PersistentFlags().String("claude-config", "", "Claude Desktop config file (default: platform location)")

	setupClaudeDesktopCmd.Flags().StringP("binary", "b", "", "path to the mcp-server binary (default: search PATH and build directories)")
	setupClaudeDesktopCmd.Flags().StringP("data-dir", "d", "", "note data directory (default: storage.data_dir)")
	setupClaudeDesktopCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	setupCmd.AddCommand(setupClaudeDesktopCmd, setupStatusCmd)
	rootCmd.AddCommand(setupCmd)
}

func newSetupCLI(cmd *cobra.Command) (*setup.CLI, error) {
	path, _ := cmd.Flags().GetString("claude-config")
	if path == "" {
		var err error
		path, err = setup.ClaudeDesktopConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return setup.NewCLI(path, cmd.InOrStdin(), cmd.OutOrStdout()), nil
}
