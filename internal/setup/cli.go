package setup

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CLI prints setup results and asks for confirmation. The cobra commands
// in cmd/scribe drive it.
type CLI struct {
	ConfigPath string
	out        io.Writer
	in         *bufio.Reader
}

// NewCLI creates a CLI that writes to out and reads answers from in
func NewCLI(configPath string, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		ConfigPath: configPath,
		out:        out,
		in:         bufio.NewReader(in),
	}
}

// ConfigureClaudeDesktop shows the planned entry, asks unless autoConfirm,
// then writes the config and creates the data directory
func (c *CLI) ConfigureClaudeDesktop(opts Options, autoConfirm bool) error {
	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file: %s\n", c.ConfigPath)
	if opts.BinaryPath != "" {
		fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	}
	if opts.DataDir != "" {
		fmt.Fprintf(c.out, "Data directory: %s\n", opts.DataDir)
	}
	fmt.Fprintln(c.out)

	if !autoConfirm && !c.confirm("Proceed with configuration? [Y/n]: ", true) {
		fmt.Fprintln(c.out, "Configuration cancelled.")
		return nil
	}

	entry, err := ConfigureClaudeDesktop(c.ConfigPath, opts)
	if err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}
	if err := EnsureDataDir(entry.Env[DataDirEnv]); err != nil {
		fmt.Fprintf(c.out, "Warning: could not create data directory: %v\n", err)
	}

	fmt.Fprintln(c.out, "Claude Desktop configured.")
	fmt.Fprintf(c.out, "  command: %s\n", entry.Command)
	fmt.Fprintf(c.out, "  %s=%s\n", DataDirEnv, entry.Env[DataDirEnv])
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Next steps:")
	fmt.Fprintln(c.out, "  1. Restart Claude Desktop to load the new configuration")
	fmt.Fprintln(c.out, "  2. Ask Claude to generate recommendations for a SOAP note")
	return nil
}

// ShowStatus prints the current setup status
func (c *CLI) ShowStatus() error {
	status, err := GetStatus(c.ConfigPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Medical Scribe MCP Status")
	fmt.Fprintln(c.out, "=========================")
	fmt.Fprintf(c.out, "Claude Desktop config: %s\n", status.ConfigPath)
	fmt.Fprintf(c.out, "  Registered: %s\n", mark(status.Configured))
	if status.Configured {
		fmt.Fprintf(c.out, "  Binary: %s (%s)\n", status.BinaryPath, found(status.BinaryFound))
	}
	fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
	if status.DataDirExists {
		fmt.Fprintf(c.out, "  Notes database: %s\n", found(status.NotesDBExists))
	} else {
		fmt.Fprintln(c.out, "  Will be created on first run")
	}

	fmt.Fprintf(c.out, "Ready: %s\n", mark(status.Ready()))
	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  - %s\n", issue)
		}
	}
	return nil
}

func (c *CLI) confirm(prompt string, def bool) bool {
	fmt.Fprint(c.out, prompt)
	answer, _ := c.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}
