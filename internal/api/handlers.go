package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/logging"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/service"
)

type analyzeBody struct {
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
	Model  string `json:"model"`
}

type analyzeResponse struct {
	*service.AnalyzeResult
	ID string `json:"id,omitempty"`
}

// SSE payloads of a streaming analysis
type (
	contentEvent struct {
		Content string `json:"content"`
	}
	errorEvent struct {
		Error string `json:"error"`
	}
	doneEvent struct {
		Done            bool                    `json:"done"`
		Note            *domain.ClinicalNote    `json:"note"`
		Usage           domain.TokenUsage       `json:"usage"`
		Recommendations []domain.Recommendation `json:"recommendations"`
		Model           string                  `json:"model"`
		Cached          bool                    `json:"cached"`
		ID              string                  `json:"id,omitempty"`
	}
)

// chatSupportBody keeps conversationHistory raw so that malformed turns
// can be dropped instead of failing the whole request
type chatSupportBody struct {
	Message             string               `json:"message"`
	SOAPNote            *domain.ClinicalNote `json:"soapNote"`
	Transcript          string               `json:"transcript"`
	Model               string               `json:"model"`
	ConversationHistory json.RawMessage      `json:"conversationHistory"`
}

type ttsBody struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  domain.AvailableModels,
		"default": domain.DefaultModel,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.deps.Analyzer == nil {
		s.respondError(c, domain.ErrMissingAPIKey, domain.MsgAnalysisFailed)
		return
	}

	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondBadRequest(c, domain.MsgEmptyTranscript)
		return
	}
	req := service.AnalyzeRequest{Text: body.Text, Model: body.Model}

	if body.Stream {
		s.streamAnalyze(c, req)
		return
	}

	ctx := c.Request.Context()
	if timeout := s.configManager.GetServerConfig().RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := s.deps.Analyzer.Analyze(ctx, req)
	if err != nil {
		s.respondError(c, err, domain.MsgAnalysisFailed)
		return
	}

	id := s.afterAnalysis(c.Request.Context(), body.Text, result)
	c.JSON(http.StatusOK, analyzeResponse{AnalyzeResult: result, ID: id})
}

func (s *Server) streamAnalyze(c *gin.Context, req service.AnalyzeRequest) {
	started := false
	send := func(ev interface{}) error {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	result, err := s.deps.Analyzer.AnalyzeStream(c.Request.Context(), req, func(chunk string) error {
		return send(contentEvent{Content: chunk})
	})
	if err != nil {
		if !started {
			s.respondError(c, err, domain.MsgAnalysisFailed)
			return
		}
		_, body := classifyError(err, domain.MsgAnalysisFailed)
		logging.FromContext(c.Request.Context(), s.logger).WithError(err).Error("Streaming analysis failed")
		_ = send(errorEvent{Error: body.Error})
		return
	}

	id := s.afterAnalysis(c.Request.Context(), req.Text, result)
	_ = send(doneEvent{
		Done:            true,
		Note:            result.Note,
		Usage:           result.Usage,
		Recommendations: result.Recommendations,
		Model:           result.Model,
		Cached:          result.Cached,
		ID:              id,
	})
}

// afterAnalysis stores the note and records usage. Failures are logged
// and never fail the request.
func (s *Server) afterAnalysis(ctx context.Context, transcript string, result *service.AnalyzeResult) string {
	log := logging.FromContext(ctx, s.logger)
	log.WithFields(logrus.Fields{
		"model":           result.Model,
		"cached":          result.Cached,
		"recommendations": len(result.Recommendations),
		"total_tokens":    result.Usage.TotalTokens,
	}).Info("Clinical note generated")

	s.recordUsage(ctx, domain.OperationAnalyze, result.Model, result.Usage, result.Cached)

	if s.deps.Store == nil {
		return ""
	}
	usage := result.Usage
	rec := &notestore.Record{
		Transcript: transcript,
		Model:      result.Model,
		Note:       result.Note,
		Usage:      &usage,
	}
	if err := s.deps.Store.Save(ctx, rec); err != nil {
		log.WithError(err).Warn("Failed to save clinical note")
		return ""
	}
	return rec.ID
}

func (s *Server) recordUsage(ctx context.Context, operation, model string, usage domain.TokenUsage, cached bool) {
	if s.deps.Usage == nil {
		return
	}
	err := s.deps.Usage.Record(ctx, domain.UsageRecord{
		RequestID: logging.CorrelationID(ctx),
		Operation: operation,
		Model:     model,
		Usage:     usage,
		Cached:    cached,
	})
	if err != nil {
		logging.FromContext(ctx, s.logger).WithError(err).Warn("Failed to record LLM usage")
	}
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var note domain.ClinicalNote
	if err := c.ShouldBindJSON(&note); err != nil {
		s.respondBadRequest(c, "invalid clinical note JSON")
		return
	}

	recs := s.deps.Engine.Generate(&note)
	logging.FromContext(c.Request.Context(), s.logger).
		WithField("count", len(recs)).Debug("Recommendations generated")

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) handleChatSupport(c *gin.Context) {
	if s.deps.Chat == nil {
		s.respondError(c, domain.ErrMissingAPIKey, domain.MsgChatFailed)
		return
	}

	var body chatSupportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondBadRequest(c, domain.MsgInvalidMessage)
		return
	}

	reply, err := s.deps.Chat.Ask(c.Request.Context(), service.ChatSupportRequest{
		Message:             body.Message,
		Note:                body.SOAPNote,
		Transcript:          body.Transcript,
		Model:               body.Model,
		ConversationHistory: decodeHistory(body.ConversationHistory),
	})
	if err != nil {
		s.respondError(c, err, domain.MsgChatFailed)
		return
	}

	s.recordUsage(c.Request.Context(), domain.OperationChat, reply.Model, reply.Usage, false)
	c.JSON(http.StatusOK, reply)
}

// decodeHistory keeps the turns whose role and content are both strings.
// Anything that is not a JSON array yields no history.
func decodeHistory(raw json.RawMessage) []domain.ChatMessage {
	var entries []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}

	history := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if json.Unmarshal(entry, &fields) != nil {
			continue
		}
		role, ok := stringField(fields, "role")
		if !ok {
			continue
		}
		content, ok := stringField(fields, "content")
		if !ok {
			continue
		}
		history = append(history, domain.ChatMessage{Role: role, Content: content})
	}
	return history
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw := fields[key]
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func (s *Server) handleTTS(c *gin.Context) {
	if s.deps.Speech == nil {
		s.respondError(c, domain.ErrMissingAPIKey, domain.MsgSpeechFailed)
		return
	}

	var body ttsBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		s.respondBadRequest(c, domain.MsgEmptyTranscript)
		return
	}

	audio, err := s.deps.Speech.Synthesize(c.Request.Context(), body.Text, body.Voice)
	if err != nil {
		s.respondError(c, err, domain.MsgSpeechFailed)
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) handleUsage(c *gin.Context) {
	if s.deps.Usage == nil {
		s.respondUnavailable(c, "usage ledger")
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		parsed, err := parseSince(raw)
		if err != nil {
			s.respondBadRequest(c, err.Error())
			return
		}
		since = parsed
	}

	summaries, err := s.deps.Usage.Summary(c.Request.Context(), since)
	if err != nil {
		s.respondError(c, err, "failed to load usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"since":  since,
		"models": summaries,
	})
}

// parseSince accepts an RFC 3339 timestamp, a date or a duration such as 72h
func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return time.Now().UTC().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid since parameter: %q", raw)
}
