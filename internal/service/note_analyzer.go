package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

// AnalyzeRequest asks for a clinical note to be generated from a transcript
type AnalyzeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// AnalyzeResult is a generated note plus everything derived from it
type AnalyzeResult struct {
	Note            *domain.ClinicalNote    `json:"note"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Usage           domain.TokenUsage       `json:"usage"`
	Model           string                  `json:"model"`
	Cached          bool                    `json:"cached"`
}

// NoteAnalyzerConfig configures the analyzer's in-memory cache
type NoteAnalyzerConfig struct {
	MaxCacheItems int
}

// AnalyzerStats counts cache behaviour and LLM calls
type AnalyzerStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	SharedHits    int64     `json:"shared_hits"`
	Misses        int64     `json:"misses"`
	LLMCalls      int64     `json:"llm_calls"`
	ErrorCount    int64     `json:"error_count"`
	TotalRequests int64     `json:"total_requests"`
	LastReset     time.Time `json:"last_reset"`
}

// NoteAnalyzer turns transcripts into clinical notes. Results are cached
// in memory first and in the optional shared cache second.
type NoteAnalyzer struct {
	llm         domain.LLMClient
	engine      *RecommendationEngine
	memoryCache *lru.Cache[string, *domain.ClinicalNote]
	sharedCache domain.NoteCache // may be nil
	logger      *logrus.Logger

	stats   AnalyzerStats
	statsMu sync.Mutex
}

// NewNoteAnalyzer creates an analyzer. sharedCache may be nil.
func NewNoteAnalyzer(config NoteAnalyzerConfig, llm domain.LLMClient, sharedCache domain.NoteCache, logger *logrus.Logger) (*NoteAnalyzer, error) {
	if llm == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if config.MaxCacheItems <= 0 {
		config.MaxCacheItems = 256
	}
	if logger == nil {
		logger = logrus.New()
	}

	memoryCache, err := lru.New[string, *domain.ClinicalNote](config.MaxCacheItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &NoteAnalyzer{
		llm:         llm,
		engine:      NewRecommendationEngine(),
		memoryCache: memoryCache,
		sharedCache: sharedCache,
		logger:      logger,
		stats:       AnalyzerStats{LastReset: time.Now()},
	}, nil
}

// Analyze generates a clinical note for req.Text
func (a *NoteAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	return a.analyze(ctx, req, nil)
}

// AnalyzeStream is Analyze with content fragments passed to onChunk as the
// model produces them. A cached note is delivered as a single fragment.
func (a *NoteAnalyzer) AnalyzeStream(ctx context.Context, req AnalyzeRequest, onChunk func(string) error) (*AnalyzeResult, error) {
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	return a.analyze(ctx, req, onChunk)
}

// Stats returns a snapshot of analyzer counters
func (a *NoteAnalyzer) Stats() AnalyzerStats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}

func (a *NoteAnalyzer) analyze(ctx context.Context, req AnalyzeRequest, onChunk func(string) error) (*AnalyzeResult, error) {
	a.count(func(s *AnalyzerStats) { s.TotalRequests++ })

	if err := domain.ValidateTextInput(req.Text); err != nil {
		return nil, err
	}
	model, err := domain.ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	key := cacheKey(model.ID, req.Text)
	if note, ok := a.lookup(ctx, key); ok {
		if onChunk != nil {
			raw, err := json.Marshal(note)
			if err != nil {
				return nil, fmt.Errorf("failed to encode cached note: %w", err)
			}
			if err := onChunk(string(raw)); err != nil {
				return nil, err
			}
		}
		return a.result(note, domain.EstimateUsage(model, 0, 0), model.ID, true), nil
	}
	a.count(func(s *AnalyzerStats) { s.Misses++ })

	completionReq := domain.CompletionRequest{
		Model: model.ID,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: soapSystemPrompt},
			{Role: "user", Content: req.Text},
		},
		JSONMode: true,
	}

	a.count(func(s *AnalyzerStats) { s.LLMCalls++ })
	start := time.Now()

	var resp *domain.CompletionResponse
	if onChunk != nil {
		resp, err = a.llm.CompleteStream(ctx, completionReq, onChunk)
	} else {
		resp, err = a.llm.Complete(ctx, completionReq)
	}
	if err != nil {
		a.count(func(s *AnalyzerStats) { s.ErrorCount++ })
		return nil, fmt.Errorf("failed to generate clinical note: %w", err)
	}

	note, err := ParseClinicalNote(resp.Content)
	if err != nil {
		a.count(func(s *AnalyzerStats) { s.ErrorCount++ })
		return nil, err
	}

	usage := domain.EstimateUsage(model, resp.PromptTokens, resp.CompletionTokens)
	a.logger.WithFields(logrus.Fields{
		"model":             model.ID,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"cost_usd":          usage.EstimatedCostUSD,
		"duration_ms":       time.Since(start).Milliseconds(),
		"streamed":          onChunk != nil,
	}).Info("Generated clinical note")

	a.store(ctx, key, note)
	return a.result(note, usage, model.ID, false), nil
}

// ParseClinicalNote decodes model output into a note. Output without a
// JSON object "soap" field is rejected with domain.ErrInvalidNote.
func ParseClinicalNote(content string) (*domain.ClinicalNote, error) {
	raw := []byte(strings.TrimSpace(content))
	if !domain.IsValidNoteJSON(raw) {
		return nil, domain.ErrInvalidNote
	}
	var note domain.ClinicalNote
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNote, err)
	}
	return &note, nil
}

func (a *NoteAnalyzer) result(note *domain.ClinicalNote, usage domain.TokenUsage, model string, cached bool) *AnalyzeResult {
	return &AnalyzeResult{
		Note:            note,
		Recommendations: a.engine.Generate(note),
		Usage:           usage,
		Model:           model,
		Cached:          cached,
	}
}

func (a *NoteAnalyzer) lookup(ctx context.Context, key string) (*domain.ClinicalNote, bool) {
	if note, ok := a.memoryCache.Get(key); ok {
		a.count(func(s *AnalyzerStats) { s.MemoryHits++ })
		a.logger.WithField("cache_tier", "memory").Debug("Analysis cache hit")
		return note, true
	}

	if a.sharedCache == nil {
		return nil, false
	}
	note, ok, err := a.sharedCache.Get(ctx, key)
	if err != nil {
		a.logger.WithError(err).Warn("Shared analysis cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	a.count(func(s *AnalyzerStats) { s.SharedHits++ })
	a.logger.WithField("cache_tier", "shared").Debug("Analysis cache hit")
	a.memoryCache.Add(key, note)
	return note, true
}

func (a *NoteAnalyzer) store(ctx context.Context, key string, note *domain.ClinicalNote) {
	a.memoryCache.Add(key, note)
	if a.sharedCache == nil {
		return
	}
	if err := a.sharedCache.Set(ctx, key, note); err != nil {
		a.logger.WithError(err).Warn("Failed to write shared analysis cache")
	}
}

func (a *NoteAnalyzer) count(update func(*AnalyzerStats)) {
	a.statsMu.Lock()
	update(&a.stats)
	a.statsMu.Unlock()
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "analysis:" + hex.EncodeToString(sum[:])
}
