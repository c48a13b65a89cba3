package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscapeCSVCell(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"simple text", "simple text", `"simple text"`},
		{"digits", "12345", `"12345"`},
		{"inner quotes", `text with "quotes"`, `"text with ""quotes"""`},
		{"commas", "one, two, three", `"one, two, three"`},
		{"newlines", "line1\nline2", "\"line1\nline2\""},
		{"integer", 123, `"123"`},
		{"nil", nil, `"null"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeCSVCell(tt.value))
		})
	}
}

func TestValidateTextInput(t *testing.T) {
	assert.NoError(t, ValidateTextInput("頭が痛いです"))
	assert.True(t, errors.Is(ValidateTextInput(""), ErrEmptyTranscript))
	assert.True(t, errors.Is(ValidateTextInput("   \n\t"), ErrEmptyTranscript))
}

func TestIsValidNoteJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", `{"soap": {"subjective": {}}}`, true},
		{"empty soap object", `{"soap": {}}`, true},
		{"null soap", `{"soap": null}`, false},
		{"missing soap", `{"summary": "x"}`, false},
		{"soap is string", `{"soap": "text"}`, false},
		{"array", `[1, 2]`, false},
		{"null", `null`, false},
		{"garbage", `{not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidNoteJSON([]byte(tt.input)))
		})
	}
}

func TestExtractSpeechText(t *testing.T) {
	t.Run("all sections", func(t *testing.T) {
		soap := &SOAPNote{
			Subjective: &Subjective{PresentIllness: "頭痛が続いている"},
			Objective:  &Objective{PhysicalExam: "異常なし"},
			Assessment: &Assessment{Diagnosis: "緊張型頭痛"},
			Plan:       &Plan{Treatment: "鎮痛薬"},
		}
		expected := "主観的情報: 頭痛が続いている\n客観的情報: 異常なし\n評価: 緊張型頭痛\n計画: 鎮痛薬"
		assert.Equal(t, expected, ExtractSpeechText(soap))
	})

	t.Run("skips empty and missing sections", func(t *testing.T) {
		soap := &SOAPNote{
			Subjective: &Subjective{PresentIllness: ""},
			Assessment: &Assessment{Diagnosis: "片頭痛"},
		}
		assert.Equal(t, "評価: 片頭痛", ExtractSpeechText(soap))
	})

	t.Run("nil soap", func(t *testing.T) {
		assert.Equal(t, "", ExtractSpeechText(nil))
	})
}

func TestTimestampForFilename(t *testing.T) {
	ts := TimestampForFilename(time.Date(2025, 3, 9, 14, 5, 7, 123, time.UTC))
	assert.Equal(t, "2025-03-09T14-05-07", ts)

	now := TimestampForFilename(time.Now())
	assert.NotContains(t, now, ":")
	assert.Len(t, now, 19)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}$`), now)
}
