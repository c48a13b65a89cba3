package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/medical-scribe-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. SCRIBE_SERVER_PORT
const EnvPrefix = "SCRIBE"

// Manager implements domain.ConfigManager using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager loads configuration. configFile may be empty, in which case
// config.yaml is looked up in the working directory, ./config and
// /etc/medical-scribe.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// LoadDotEnv loads the first existing env file into the process
// environment without overriding variables that are already set.
// It defaults to .env and is a no-op when no file exists.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
		return nil
	}
	return nil
}

// DefaultDataDir is where local note history and exports live
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medical-scribe"
	}
	return filepath.Join(home, ".medical-scribe")
}

func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/medical-scribe/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys that also answer to conventional names outside the prefix
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return err
	}
	if err := v.BindEnv("storage.data_dir", EnvPrefix+"_STORAGE_DATA_DIR", EnvPrefix+"_DATA_DIR"); err != nil {
		return err
	}
	if err := v.BindEnv("storage.database_url", EnvPrefix+"_STORAGE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return err
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "90s")
	v.SetDefault("server.tls_enabled", false)
	v.SetDefault("server.allowed_origins", []string{})

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.default_model", domain.DefaultModel)
	v.SetDefault("llm.tts_model", "tts-1")
	v.SetDefault("llm.tts_voice", "alloy")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.rate_limit", 5)
	v.SetDefault("llm.retry_count", 3)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.data_dir", DefaultDataDir())
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.migrations_path", "")
	v.SetDefault("storage.max_open_conns", 25)
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.conn_max_lifetime", "5m")

	// Cache defaults
	v.SetDefault("cache.max_items", 256)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// MCP defaults
	v.SetDefault("mcp.server_name", "medical-scribe")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetLLMConfig returns LLM configuration
func (m *Manager) GetLLMConfig() *domain.LLMConfig {
	return &m.config.LLM
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// ConfigFileUsed returns the path of the loaded config file, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration. A missing API key is not an error
// here since recommendation-only deployments never call the LLM.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.LLM.BaseURL == "" {
		return fmt.Errorf("LLM base URL is required")
	}
	if u, err := url.Parse(config.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid LLM base URL: %s", config.LLM.BaseURL)
	}
	if _, ok := domain.FindModel(config.LLM.DefaultModel); !ok {
		return fmt.Errorf("unsupported default model: %s", config.LLM.DefaultModel)
	}

	switch config.Storage.Driver {
	case "sqlite":
		if config.Storage.DataDir == "" {
			return fmt.Errorf("storage data directory is required for sqlite")
		}
	case "postgres":
		if config.Storage.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres storage")
		}
	case "none":
	default:
		return fmt.Errorf("invalid storage driver: %s", config.Storage.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
