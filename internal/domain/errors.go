package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeLLM            = "LLM_ERROR"
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
)

// User-facing messages shown by the scribe UI
const (
	MsgEmptyTranscript   = "テキストがありません"
	MsgAnalysisFailed    = "AI処理に失敗しました"
	MsgSpeechFailed      = "音声生成に失敗しました"
	MsgChatFailed        = "チャット処理に失敗しました"
	MsgEmptyReply        = "AI応答が空です"
	MsgInvalidMessage    = "メッセージが無効です"
	MsgMessageTooLong    = "メッセージが長すぎます（最大2000文字）"
	MsgTranscriptTooLong = "トランスクリプトが長すぎます"
	MsgInvalidAPIKey     = "OpenAI APIキーが無効です"
	MsgRateLimited       = "APIレート制限に達しました。しばらく待ってから再試行してください"
)

var (
	// ErrEmptyTranscript is returned when there is no transcript text to analyze
	ErrEmptyTranscript = errors.New(MsgEmptyTranscript)
	// ErrInvalidNote is returned when model output lacks a SOAP body
	ErrInvalidNote = errors.New("clinical note has no soap section")
	// ErrStorage wraps failures of the note store backend
	ErrStorage = errors.New("note storage failure")
	// ErrNoteNotFound is returned by note stores for unknown IDs
	ErrNoteNotFound = errors.New("clinical note not found")
	// ErrMissingAPIKey is returned when no LLM API key is configured
	ErrMissingAPIKey = errors.New("LLM API key is not configured")
	// ErrLLMUnauthorized is returned when the provider rejects the API key
	ErrLLMUnauthorized = errors.New("LLM provider rejected the API key")
	// ErrLLMRateLimited is returned when the provider keeps answering 429
	ErrLLMRateLimited = errors.New("LLM provider rate limit exceeded")
	// ErrLLMUnavailable is returned while the provider circuit is open
	ErrLLMUnavailable = errors.New("LLM provider unavailable")
	// ErrEmptyCompletion is returned when the provider answers with no content
	ErrEmptyCompletion = errors.New(MsgEmptyReply)
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
