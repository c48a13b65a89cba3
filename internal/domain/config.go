package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	LLM         LLMConfig     `mapstructure:"llm"`
	Storage     StorageConfig `mapstructure:"storage"`
	Cache       CacheConfig   `mapstructure:"cache"`
	Logging     LoggingConfig `mapstructure:"logging"`
	MCP         MCPConfig     `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	DefaultModel string        `mapstructure:"default_model"`
	TTSModel     string        `mapstructure:"tts_model"`
	TTSVoice     string        `mapstructure:"tts_voice"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per second
	RetryCount   int           `mapstructure:"retry_count"`
}

// StorageConfig selects and configures the clinical note store
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite" or "postgres"
	DataDir         string        `mapstructure:"data_dir"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents analysis cache configuration
type CacheConfig struct {
	MaxItems    int           `mapstructure:"max_items"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
