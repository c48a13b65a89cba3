package domain

import (
	"context"
)

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetLLMConfig() *LLMConfig
	GetStorageConfig() *StorageConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}

// ChatMessage is one turn of a chat-support conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion request
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	JSONMode    bool
	MaxTokens   int      // zero leaves the provider default
	Temperature *float64 // nil leaves the provider default
}

// CompletionResponse is a provider-neutral chat completion result
type CompletionResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient produces completions from a chat transcript
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// CompleteStream calls onDelta for each content fragment as it arrives
	// and returns the assembled response once the stream ends.
	CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(string) error) (*CompletionResponse, error)
}

// SpeechSynthesizer turns text into audio
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// NoteCache is a shared cache tier for analyzed notes
type NoteCache interface {
	Get(ctx context.Context, key string) (*ClinicalNote, bool, error)
	Set(ctx context.Context, key string, note *ClinicalNote) error
}
