package domain

import (
	"context"
	"time"
)

// Operations recorded in the usage ledger
const (
	OperationAnalyze = "analyze"
	OperationChat    = "chat_support"
	OperationSpeech  = "tts"
)

// UsageRecord is one billed LLM call
type UsageRecord struct {
	RequestID string     `json:"requestId,omitempty"`
	Operation string     `json:"operation"`
	Model     string     `json:"model"`
	Usage     TokenUsage `json:"usage"`
	Cached    bool       `json:"cached"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ModelUsageSummary aggregates the ledger for one model
type ModelUsageSummary struct {
	Model            string  `json:"model"`
	Requests         int64   `json:"requests"`
	CachedRequests   int64   `json:"cachedRequests"`
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	TotalTokens      int64   `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUSD"`
	EstimatedCostJPY float64 `json:"estimatedCostJPY"`
}

// UsageLedger records LLM usage and reports totals per model
type UsageLedger interface {
	Record(ctx context.Context, rec UsageRecord) error
	Summary(ctx context.Context, since time.Time) ([]ModelUsageSummary, error)
}
