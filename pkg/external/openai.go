package external

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/medical-scribe-server/internal/domain"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultTTSModel      = "tts-1"
	defaultTTSVoice      = "alloy"
	maxSSELineSize       = 1024 * 1024
)

// OpenAIClient talks to an OpenAI-compatible API. Every call waits on the
// rate limiter, runs inside the circuit breaker and retries HTTP 429.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	ttsModel   string
	ttsVoice   string
	maxRetries int
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// ChatCompletionRequest is the body of POST /chat/completions
type ChatCompletionRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	Temperature    *float64             `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat      `json:"response_format,omitempty"`
	Stream         bool                 `json:"stream,omitempty"`
	StreamOptions  *StreamOptions       `json:"stream_options,omitempty"`
}

// ResponseFormat selects plain text or JSON object output
type ResponseFormat struct {
	Type string `json:"type"`
}

// StreamOptions asks for a trailing usage chunk on streamed completions
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Usage reports token counts for one completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChoice is one candidate message of a completion
type ChatChoice struct {
	Index        int                `json:"index"`
	Message      domain.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streamed completion body
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
	Error   *apiError    `json:"error,omitempty"`
}

// ChatCompletionChunk is one SSE event of a streamed completion
type ChatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// SpeechRequest is the body of POST /audio/speech
type SpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// APIStatusError is returned for non-2xx provider responses
type APIStatusError struct {
	StatusCode int
	Message    string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("LLM API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known statuses onto domain sentinels
func (e *APIStatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrLLMUnauthorized
	case http.StatusTooManyRequests:
		return domain.ErrLLMRateLimited
	default:
		return nil
	}
}

// NewOpenAIClient creates a client from LLM configuration
func NewOpenAIClient(config domain.LLMConfig, logger *logrus.Logger) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.TTSModel == "" {
		config.TTSModel = defaultTTSModel
	}
	if config.TTSVoice == "" {
		config.TTSVoice = defaultTTSVoice
	}
	if logger == nil {
		logger = logrus.New()
	}

	c := &OpenAIClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		ttsModel:   config.TTSModel,
		ttsVoice:   config.TTSVoice,
		maxRetries: config.RetryCount,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OpenAI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Client-side mistakes say nothing about provider health
			var statusErr *APIStatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return c, nil
}

// ChatCompletion sends a non-streamed completion request
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	req.Stream = false
	req.StreamOptions = nil

	resp, err := c.send(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if completion.Error != nil {
		return nil, &APIStatusError{StatusCode: resp.StatusCode, Message: completion.Error.Message}
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	return &completion, nil
}

// ChatCompletionStream sends a streamed completion request and calls onDelta
// for every content fragment. The returned response holds the assembled
// message and the trailing usage chunk when the provider sends one.
func (c *OpenAIClient) ChatCompletionStream(ctx context.Context, req ChatCompletionRequest, onDelta func(string) error) (*ChatCompletionResponse, error) {
	req.Stream = true
	req.StreamOptions = &StreamOptions{IncludeUsage: true}

	resp, err := c.send(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		content strings.Builder
		usage   *Usage
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("failed to parse stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return nil, &APIStatusError{StatusCode: resp.StatusCode, Message: chunk.Error.Message}
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			if onDelta != nil {
				if err := onDelta(choice.Delta.Content); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completion stream: %w", err)
	}

	return &ChatCompletionResponse{
		Model: req.Model,
		Choices: []ChatChoice{{
			Message:      domain.ChatMessage{Role: "assistant", Content: content.String()},
			FinishReason: "stop",
		}},
		Usage: usage,
	}, nil
}

// Speech synthesizes input into MP3 audio
func (c *OpenAIClient) Speech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if req.Model == "" {
		req.Model = c.ttsModel
	}
	if req.Voice == "" {
		req.Voice = c.ttsVoice
	}

	resp, err := c.send(ctx, "/audio/speech", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	return audio, nil
}

// Complete implements domain.LLMClient
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	completion, err := c.ChatCompletion(ctx, toChatRequest(req))
	if err != nil {
		return nil, err
	}
	return toCompletionResponse(completion), nil
}

// CompleteStream implements domain.LLMClient
func (c *OpenAIClient) CompleteStream(ctx context.Context, req domain.CompletionRequest, onDelta func(string) error) (*domain.CompletionResponse, error) {
	completion, err := c.ChatCompletionStream(ctx, toChatRequest(req), onDelta)
	if err != nil {
		return nil, err
	}
	return toCompletionResponse(completion), nil
}

// Synthesize implements domain.SpeechSynthesizer
func (c *OpenAIClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return c.Speech(ctx, SpeechRequest{Input: text, Voice: voice})
}

// BreakerState reports the circuit breaker state for health checks
func (c *OpenAIClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// send posts payload to path and returns a 2xx response with an unread body
func (c *OpenAIClient) send(ctx context.Context, path string, payload any) (*http.Response, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, readStatusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
		}
		c.logger.WithError(err).WithField("path", path).Debug("LLM request failed")
		return nil, err
	}

	return result.(*http.Response), nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope struct {
		Error *apiError `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIStatusError{StatusCode: resp.StatusCode, Message: message}
}

func toChatRequest(req domain.CompletionRequest) ChatCompletionRequest {
	chat := ChatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		chat.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return chat
}

func toCompletionResponse(completion *ChatCompletionResponse) *domain.CompletionResponse {
	out := &domain.CompletionResponse{}
	if len(completion.Choices) > 0 {
		out.Content = completion.Choices[0].Message.Content
	}
	if completion.Usage != nil {
		out.PromptTokens = completion.Usage.PromptTokens
		out.CompletionTokens = completion.Usage.CompletionTokens
	}
	return out
}
