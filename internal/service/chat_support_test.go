package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medical-scribe-server/internal/domain"
)

func TestChatSupport_Ask(t *testing.T) {
	ctx := context.Background()

	t.Run("Builds_Context_And_Classifies", func(t *testing.T) {
		var captured domain.CompletionRequest
		llm := new(MockLLMClient)
		llm.On("Complete", ctx, mock.Anything).
			Run(func(args mock.Arguments) { captured = args.Get(1).(domain.CompletionRequest) }).
			Return(&domain.CompletionResponse{Content: "MRIの実施を推奨します", PromptTokens: 100, CompletionTokens: 20}, nil)

		chat := NewChatSupport(llm, quietLogger())
		reply, err := chat.Ask(ctx, ChatSupportRequest{
			Message:    "追加検査は必要ですか？",
			Note:       createAllRulesNote(),
			Transcript: "医師: どうされましたか",
		})

		require.NoError(t, err)
		assert.Equal(t, ReplyTypeRecommendation, reply.Type)
		assert.Equal(t, domain.DefaultModel, reply.Model)
		assert.Equal(t, 120, reply.Usage.TotalTokens)

		require.Len(t, captured.Messages, 2)
		system := captured.Messages[0].Content
		assert.Contains(t, system, "- 重症度: 重度")
		assert.Contains(t, system, "- 鑑別診断: 片頭痛, 緊張型頭痛, 群発頭痛")
		assert.Contains(t, system, "## 元のトランスクリプト\n医師: どうされましたか")
		assert.Equal(t, "追加検査は必要ですか？", captured.Messages[1].Content)
		assert.Equal(t, 1000, captured.MaxTokens)
		require.NotNil(t, captured.Temperature)
		assert.InDelta(t, 0.7, *captured.Temperature, 1e-9)
	})

	t.Run("Unknown_Model_Falls_Back", func(t *testing.T) {
		var captured domain.CompletionRequest
		llm := new(MockLLMClient)
		llm.On("Complete", ctx, mock.Anything).
			Run(func(args mock.Arguments) { captured = args.Get(1).(domain.CompletionRequest) }).
			Return(&domain.CompletionResponse{Content: "はい"}, nil)

		chat := NewChatSupport(llm, quietLogger())
		_, err := chat.Ask(ctx, ChatSupportRequest{Message: "質問", Model: "gpt-3.5"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultModel, captured.Model)
	})

	t.Run("History_Filtered_And_Capped", func(t *testing.T) {
		var captured domain.CompletionRequest
		llm := new(MockLLMClient)
		llm.On("Complete", ctx, mock.Anything).
			Run(func(args mock.Arguments) { captured = args.Get(1).(domain.CompletionRequest) }).
			Return(&domain.CompletionResponse{Content: "了解"}, nil)

		history := []domain.ChatMessage{{Role: "tool", Content: "dropped"}}
		for i := 0; i < 12; i++ {
			history = append(history, domain.ChatMessage{Role: "user", Content: fmt.Sprintf("m%d", i)})
		}
		history = append(history, domain.ChatMessage{Role: "assistant", Content: strings.Repeat("長", 1500)})

		chat := NewChatSupport(llm, quietLogger())
		_, err := chat.Ask(ctx, ChatSupportRequest{Message: "質問", ConversationHistory: history})
		require.NoError(t, err)

		// system + 10 history + user
		require.Len(t, captured.Messages, 12)
		assert.Equal(t, "m3", captured.Messages[1].Content)
		assert.Equal(t, 1000, len([]rune(captured.Messages[10].Content)))
		for _, m := range captured.Messages {
			assert.NotEqual(t, "tool", m.Role)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name    string
			req     ChatSupportRequest
			field   string
			message string
		}{
			{"empty message", ChatSupportRequest{Message: " "}, "message", domain.MsgInvalidMessage},
			{"long message", ChatSupportRequest{Message: strings.Repeat("あ", 2001)}, "message", domain.MsgMessageTooLong},
			{"long transcript", ChatSupportRequest{Message: "q", Transcript: strings.Repeat("a", 20001)}, "transcript", domain.MsgTranscriptTooLong},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				llm := new(MockLLMClient)
				chat := NewChatSupport(llm, quietLogger())

				_, err := chat.Ask(ctx, tt.req)

				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.field, verr.Field)
				assert.Equal(t, tt.message, verr.Message)
				llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Message_At_Limit_Accepted", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Complete", ctx, mock.Anything).Return(&domain.CompletionResponse{Content: "ok"}, nil)

		chat := NewChatSupport(llm, quietLogger())
		_, err := chat.Ask(ctx, ChatSupportRequest{Message: strings.Repeat("あ", 2000)})
		assert.NoError(t, err)
	})

	t.Run("Empty_Reply", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Complete", ctx, mock.Anything).Return(&domain.CompletionResponse{Content: "  "}, nil)

		chat := NewChatSupport(llm, quietLogger())
		_, err := chat.Ask(ctx, ChatSupportRequest{Message: "質問"})
		assert.ErrorIs(t, err, domain.ErrEmptyCompletion)
	})
}

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"緊急性が高いため救急受診を", ReplyTypeWarning},
		{"注意: 推奨検査あり", ReplyTypeWarning},
		{"CT検査を検討してください", ReplyTypeRecommendation},
		{"特に問題ありません", ReplyTypeNormal},
		{"", ReplyTypeNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyReply(tt.content), tt.content)
	}
}

func TestFormatNoteContext(t *testing.T) {
	assert.Equal(t, "（カルテデータなし）", FormatNoteContext(nil))
	assert.Equal(t, "（カルテデータなし）", FormatNoteContext(&domain.ClinicalNote{Summary: "x"}))

	sparse := FormatNoteContext(&domain.ClinicalNote{SOAP: &domain.SOAPNote{}})
	assert.Contains(t, sparse, "- 主訴: 不明")
	assert.Contains(t, sparse, "- 症状: なし")
	assert.Contains(t, sparse, "- バイタル: BP 不明, P 不明, T 不明, RR 不明")
	assert.Contains(t, sparse, "- 処方薬: なし")

	note := createTestNote()
	note.SOAP.Plan.Medications = []domain.PrescribedMedication{
		{Name: "ロキソニン", Dosage: "60mg", Frequency: "1日3回"},
		{Dosage: "5mg"},
	}
	full := FormatNoteContext(note)
	assert.Contains(t, full, "- 処方薬: ロキソニン 60mg 1日3回, 名称不明 5mg")
	assert.Contains(t, full, "- ICD-10: G44.2")
}
