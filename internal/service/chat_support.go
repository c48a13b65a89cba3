package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

const (
	maxChatMessageRunes     = 2000
	maxChatTranscriptRunes  = 20000
	chatTranscriptContext   = 5000
	chatHistoryLimit        = 10
	chatHistoryMessageRunes = 1000
	chatMaxTokens           = 1000
	chatTemperature         = 0.7
)

// Reply types assigned from keywords in the assistant's answer
const (
	ReplyTypeNormal         = "normal"
	ReplyTypeWarning        = "warning"
	ReplyTypeRecommendation = "recommendation"
)

var (
	warningKeywords        = []string{"警告", "注意", "緊急"}
	recommendationKeywords = []string{"推奨", "提案", "検討"}
)

// ChatSupportRequest is one clinician question about the current note
type ChatSupportRequest struct {
	Message             string               `json:"message"`
	Note                *domain.ClinicalNote `json:"soapNote,omitempty"`
	Transcript          string               `json:"transcript,omitempty"`
	Model               string               `json:"model,omitempty"`
	ConversationHistory []domain.ChatMessage `json:"conversationHistory,omitempty"`
}

// ChatSupportReply is the assistant's answer
type ChatSupportReply struct {
	Response string            `json:"response"`
	Type     string            `json:"type"`
	Model    string            `json:"model"`
	Usage    domain.TokenUsage `json:"usage"`
}

// ChatSupport answers clinician questions with the current note as context
type ChatSupport struct {
	llm    domain.LLMClient
	logger *logrus.Logger
}

// NewChatSupport creates a chat support service
func NewChatSupport(llm domain.LLMClient, logger *logrus.Logger) *ChatSupport {
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatSupport{llm: llm, logger: logger}
}

// Ask validates the request and asks the LLM for a reply. Unknown models
// fall back to the default model instead of failing.
func (c *ChatSupport) Ask(ctx context.Context, req ChatSupportRequest) (*ChatSupportReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.NewValidationError("message", domain.MsgInvalidMessage, req.Message)
	}
	if utf8.RuneCountInString(req.Message) > maxChatMessageRunes {
		return nil, domain.NewValidationError("message", domain.MsgMessageTooLong, utf8.RuneCountInString(req.Message))
	}
	if utf8.RuneCountInString(req.Transcript) > maxChatTranscriptRunes {
		return nil, domain.NewValidationError("transcript", domain.MsgTranscriptTooLong, utf8.RuneCountInString(req.Transcript))
	}

	model, ok := domain.FindModel(req.Model)
	if !ok {
		model, _ = domain.FindModel(domain.DefaultModel)
	}

	system := chatSupportPrompt + "\n\n" + FormatNoteContext(req.Note)
	if req.Transcript != "" {
		system += "\n## 元のトランスクリプト\n" + truncateRunes(req.Transcript, chatTranscriptContext)
	}

	messages := []domain.ChatMessage{{Role: "system", Content: system}}
	messages = append(messages, filterHistory(req.ConversationHistory)...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: req.Message})

	temperature := chatTemperature
	resp, err := c.llm.Complete(ctx, domain.CompletionRequest{
		Model:       model.ID,
		Messages:    messages,
		MaxTokens:   chatMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat support completion failed: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, domain.ErrEmptyCompletion
	}

	reply := &ChatSupportReply{
		Response: resp.Content,
		Type:     ClassifyReply(resp.Content),
		Model:    model.ID,
		Usage:    domain.EstimateUsage(model, resp.PromptTokens, resp.CompletionTokens),
	}

	c.logger.WithFields(logrus.Fields{
		"model":        model.ID,
		"reply_type":   reply.Type,
		"history":      len(messages) - 2,
		"total_tokens": reply.Usage.TotalTokens,
	}).Info("Answered chat support question")

	return reply, nil
}

// ClassifyReply tags a reply as warning, recommendation or normal.
// Warning keywords take precedence.
func ClassifyReply(content string) string {
	for _, kw := range warningKeywords {
		if strings.Contains(content, kw) {
			return ReplyTypeWarning
		}
	}
	for _, kw := range recommendationKeywords {
		if strings.Contains(content, kw) {
			return ReplyTypeRecommendation
		}
	}
	return ReplyTypeNormal
}

// FormatNoteContext renders a note as the Markdown context block given to
// the chat assistant.
func FormatNoteContext(note *domain.ClinicalNote) string {
	if note == nil || note.SOAP == nil {
		return "（カルテデータなし）"
	}

	var (
		soap = note.SOAP
		subj = soap.Subjective
		obj  = soap.Objective
		asmt = soap.Assessment
		plan = soap.Plan
	)
	if subj == nil {
		subj = &domain.Subjective{}
	}
	if obj == nil {
		obj = &domain.Objective{}
	}
	vitals := obj.VitalSigns
	if vitals == nil {
		vitals = &domain.VitalSigns{}
	}
	if asmt == nil {
		asmt = &domain.Assessment{}
	}
	if plan == nil {
		plan = &domain.Plan{}
	}
	info := note.PatientInfo
	if info == nil {
		info = &domain.PatientInfo{}
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("## 現在の診療データ")
	line("")
	line("### 要約")
	line("%s", orUnknown(note.Summary))
	line("")
	line("### 患者情報")
	line("- 主訴: %s", orUnknown(info.ChiefComplaint))
	line("- 症状期間: %s", orUnknown(info.Duration))
	line("")
	line("### S（主観的情報）")
	line("- 現病歴: %s", orUnknown(subj.PresentIllness))
	line("- 症状: %s", joinOrNone(subj.Symptoms))
	line("- 重症度: %s", orUnknown(subj.Severity))
	line("- 発症時期: %s", orUnknown(subj.Onset))
	line("- 随伴症状: %s", joinOrNone(subj.AssociatedSymptoms))
	line("- 既往歴: %s", orUnknown(subj.PastMedicalHistory))
	line("- 服用中の薬: %s", joinOrNone(subj.Medications))
	line("")
	line("### O（客観的情報）")
	line("- バイタル: BP %s, P %s, T %s, RR %s",
		orUnknown(vitals.BloodPressure), orUnknown(vitals.Pulse),
		orUnknown(vitals.Temperature), orUnknown(vitals.RespiratoryRate))
	line("- 身体所見: %s", orUnknown(obj.PhysicalExam))
	line("- 検査所見: %s", orUnknown(obj.LaboratoryFindings))
	line("")
	line("### A（評価）")
	line("- 診断: %s", orUnknown(asmt.Diagnosis))
	line("- ICD-10: %s", orUnknown(asmt.ICD10))
	line("- 鑑別診断: %s", joinOrNone(asmt.DifferentialDiagnosis))
	line("- 臨床的印象: %s", orUnknown(asmt.ClinicalImpression))
	line("")
	line("### P（計画）")
	line("- 治療方針: %s", orUnknown(plan.Treatment))
	line("- 処方薬: %s", formatPrescriptions(plan.Medications))
	line("- 検査計画: %s", joinOrNone(plan.Tests))
	line("- 紹介: %s", orUnknown(plan.Referral))
	line("- フォローアップ: %s", orUnknown(plan.FollowUp))
	line("- 患者教育: %s", orUnknown(plan.PatientEducation))

	return b.String()
}

func formatPrescriptions(meds []domain.PrescribedMedication) string {
	if len(meds) == 0 {
		return "なし"
	}
	parts := make([]string, len(meds))
	for i, m := range meds {
		name := m.Name
		if name == "" {
			name = "名称不明"
		}
		parts[i] = strings.TrimSpace(strings.Join([]string{name, m.Dosage, m.Frequency}, " "))
	}
	return strings.Join(parts, ", ")
}

func filterHistory(history []domain.ChatMessage) []domain.ChatMessage {
	valid := make([]domain.ChatMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "user", "assistant", "system":
			valid = append(valid, domain.ChatMessage{
				Role:    msg.Role,
				Content: truncateRunes(msg.Content, chatHistoryMessageRunes),
			})
		}
	}
	if len(valid) > chatHistoryLimit {
		valid = valid[len(valid)-chatHistoryLimit:]
	}
	return valid
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orUnknown(s string) string {
	if s == "" {
		return "不明"
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "なし"
	}
	return strings.Join(items, ", ")
}
