package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/service"
)

// Tool names
const (
	ToolGenerateRecommendations = "generate_recommendations"
	ToolAnalyzeTranscript       = "analyze_transcript"
	ToolExtractSpeechText       = "extract_speech_text"
)

// NoteParams carries a clinical note as a free-form JSON object so partial
// notes from other tools are accepted
type NoteParams struct {
	Note map[string]any `json:"note" jsonschema:"clinical note JSON with summary, patientInfo and a soap object"`
}

// RecommendationsResult is the generate_recommendations output
type RecommendationsResult struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Count           int                     `json:"count"`
}

// AnalyzeTranscriptParams is the analyze_transcript input
type AnalyzeTranscriptParams struct {
	Text  string `json:"text" jsonschema:"doctor-patient conversation transcript"`
	Model string `json:"model,omitempty" jsonschema:"model id, defaults to gpt-4.1-mini"`
}

// AnalyzeTranscriptResult is the analyze_transcript output
type AnalyzeTranscriptResult struct {
	ID string `json:"id,omitempty"`
	*service.AnalyzeResult
}

// SpeechTextResult is the extract_speech_text output
type SpeechTextResult struct {
	Text string `json:"text"`
}

func (s *Server) handleGenerateRecommendations(ctx context.Context, req *mcp.CallToolRequest, params NoteParams) (*mcp.CallToolResult, RecommendationsResult, error) {
	note, err := decodeNote(params.Note)
	if err != nil {
		return errorResult("Invalid clinical note", err), RecommendationsResult{}, nil
	}

	recs := s.deps.Engine.Generate(note)
	s.logger.WithFields(logrus.Fields{
		"tool":                 ToolGenerateRecommendations,
		"recommendation_count": len(recs),
	}).Info("Tool invoked")

	return textResult(recommendationsSummary(recs)), RecommendationsResult{Recommendations: recs, Count: len(recs)}, nil
}

func (s *Server) handleAnalyzeTranscript(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeTranscriptParams) (*mcp.CallToolResult, any, error) {
	logger := s.logger.WithField("tool", ToolAnalyzeTranscript)

	if s.deps.Analyzer == nil {
		return errorResult("Analysis is not configured", domain.ErrMissingAPIKey), nil, nil
	}

	result, err := s.deps.Analyzer.Analyze(ctx, service.AnalyzeRequest{Text: params.Text, Model: params.Model})
	if err != nil {
		logger.WithError(err).Warn("Transcript analysis failed")
		return errorResult(analysisErrorMessage(err), err), nil, nil
	}

	out := AnalyzeTranscriptResult{AnalyzeResult: result}
	if s.deps.Store != nil {
		rec := &notestore.Record{Transcript: params.Text, Model: result.Model, Note: result.Note, Usage: &result.Usage}
		if err := s.deps.Store.Save(ctx, rec); err != nil {
			logger.WithError(err).Warn("Failed to save analyzed note")
		} else {
			out.ID = rec.ID
		}
	}
	if s.deps.Usage != nil {
		if err := s.deps.Usage.Record(ctx, domain.UsageRecord{
			Operation: domain.OperationAnalyze,
			Model:     result.Model,
			Usage:     result.Usage,
			Cached:    result.Cached,
		}); err != nil {
			logger.WithError(err).Warn("Failed to record usage")
		}
	}

	logger.WithFields(logrus.Fields{
		"model":        result.Model,
		"cached":       result.Cached,
		"total_tokens": result.Usage.TotalTokens,
	}).Info("Tool invoked")

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return textResult(string(payload)), out, nil
}

func (s *Server) handleExtractSpeechText(ctx context.Context, req *mcp.CallToolRequest, params NoteParams) (*mcp.CallToolResult, SpeechTextResult, error) {
	note, err := decodeNote(params.Note)
	if err != nil {
		return errorResult("Invalid clinical note", err), SpeechTextResult{}, nil
	}

	text := domain.ExtractSpeechText(note.SOAP)
	s.logger.WithFields(logrus.Fields{
		"tool":  ToolExtractSpeechText,
		"chars": len([]rune(text)),
	}).Info("Tool invoked")

	return textResult(text), SpeechTextResult{Text: text}, nil
}

// decodeNote round-trips the free-form object through the note types
func decodeNote(raw map[string]any) (*domain.ClinicalNote, error) {
	if raw == nil {
		return nil, fmt.Errorf("note is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode note: %w", err)
	}
	var note domain.ClinicalNote
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, fmt.Errorf("failed to decode note: %w", err)
	}
	return &note, nil
}

func recommendationsSummary(recs []domain.Recommendation) string {
	if len(recs) == 0 {
		return "No recommendations for this note."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d recommendation(s):\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", r.Priority, r.Title, r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func analysisErrorMessage(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, domain.ErrEmptyTranscript):
		return domain.MsgEmptyTranscript
	case errors.Is(err, domain.ErrLLMRateLimited):
		return domain.MsgRateLimited
	case errors.Is(err, domain.ErrLLMUnauthorized):
		return domain.MsgInvalidAPIKey
	default:
		return domain.MsgAnalysisFailed
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)}},
		IsError: true,
	}
}
