// Package setup registers the medical scribe MCP server with Claude Desktop
// and prepares its local data directory.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/medical-scribe-server/internal/config"
)

const (
	// ServerName is the key under mcpServers in the Claude Desktop config
	ServerName = "medical-scribe"
	// DataDirEnv points the MCP binary at its data directory
	DataDirEnv = "SCRIBE_DATA_DIR"
	// BinaryName is the MCP stdio server binary
	BinaryName = "mcp-server"

	mcpServersKey = "mcpServers"
	notesDBName   = "notes.db"
)

// MCPServerConfig is one entry of the Claude Desktop mcpServers map
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClaudeDesktopConfig is the Claude Desktop configuration file. Keys other
// than mcpServers are kept verbatim so saving never drops user settings.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig
	other      map[string]json.RawMessage
}

// Options controls ConfigureClaudeDesktop
type Options struct {
	BinaryPath string
	DataDir    string
	Args       []string
}

// Status is the current registration and data directory state
type Status struct {
	ConfigPath    string   `json:"config_path"`
	Configured    bool     `json:"configured"`
	BinaryPath    string   `json:"binary_path,omitempty"`
	BinaryFound   bool     `json:"binary_found"`
	DataDir       string   `json:"data_dir"`
	DataDirExists bool     `json:"data_dir_exists"`
	NotesDBExists bool     `json:"notes_db_exists"`
	Issues        []string `json:"issues"`
}

// ClaudeDesktopConfigPath returns the platform location of
// claude_desktop_config.json
func ClaudeDesktopConfigPath() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig reads path. A missing file yields an empty config.
func LoadClaudeDesktopConfig(path string) (*ClaudeDesktopConfig, error) {
	cfg := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other[mcpServersKey]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", mcpServersKey, err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]MCPServerConfig)
		}
		delete(cfg.other, mcpServersKey)
	}

	return cfg, nil
}

// MarshalJSON merges mcpServers back with the preserved keys
func (c *ClaudeDesktopConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.other)+1)
	for k, v := range c.other {
		out[k] = v
	}
	out[mcpServersKey] = c.MCPServers
	return json.Marshal(out)
}

// SaveClaudeDesktopConfig writes cfg to path, creating the directory
func SaveClaudeDesktopConfig(path string, cfg *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigureClaudeDesktop adds or replaces the medical-scribe entry in the
// config at path. The binary is looked up when opts.BinaryPath is empty.
func ConfigureClaudeDesktop(path string, opts Options) (*MCPServerConfig, error) {
	cfg, err := LoadClaudeDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		binary, err = FindBinary()
		if err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	entry := MCPServerConfig{
		Command: binary,
		Args:    opts.Args,
		Env:     map[string]string{DataDirEnv: dataDir},
	}
	cfg.MCPServers[ServerName] = entry

	if err := SaveClaudeDesktopConfig(path, cfg); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindBinary looks for the MCP server binary on PATH and in the usual
// build and install locations
func FindBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	locations := []string{
		filepath.Join(".", BinaryName),
		filepath.Join(".", "bin", BinaryName),
		filepath.Join(".", "build", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".local", "bin", BinaryName))
	}

	for _, loc := range locations {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary %q not found in common locations", BinaryName)
}

// GetStatus inspects the Claude Desktop config at path and the data
// directory it points to
func GetStatus(path string) (*Status, error) {
	status := &Status{ConfigPath: path, Issues: []string{}}

	cfg, err := LoadClaudeDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	if entry, ok := cfg.MCPServers[ServerName]; ok {
		status.Configured = true
		status.BinaryPath = entry.Command
		status.DataDir = entry.Env[DataDirEnv]

		if info, err := os.Stat(entry.Command); err == nil && !info.IsDir() {
			status.BinaryFound = true
			if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
			}
		} else {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
		}
	} else {
		status.Issues = append(status.Issues, "medical-scribe is not configured in Claude Desktop")
	}

	if status.DataDir == "" {
		status.DataDir = config.DefaultDataDir()
	}
	if info, err := os.Stat(status.DataDir); err == nil && info.IsDir() {
		status.DataDirExists = true
		if _, err := os.Stat(filepath.Join(status.DataDir, notesDBName)); err == nil {
			status.NotesDBExists = true
		}
	}

	return status, nil
}

// Ready reports whether the setup is usable. A missing data directory is
// not an issue since the server creates it on first run.
func (s *Status) Ready() bool {
	return s.Configured && len(s.Issues) == 0
}

// EnsureDataDir creates dataDir and its exports subdirectory
func EnsureDataDir(dataDir string) error {
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	for _, dir := range []string{dataDir, filepath.Join(dataDir, "exports")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return nil
}
