package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EscapeCSVCell wraps a value in double quotes and doubles any inner quotes
func EscapeCSVCell(value interface{}) string {
	var s string
	switch v := value.(type) {
	case nil:
		s = "null"
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ValidateTextInput rejects a missing or blank transcript
func ValidateTextInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTranscript
	}
	return nil
}

// IsValidNoteJSON reports whether data is a JSON object with a non-null object "soap" field
func IsValidNoteJSON(data []byte) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return false
	}
	soap, ok := raw["soap"]
	if !ok {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(soap, &obj); err != nil {
		return false
	}
	return obj != nil
}

// ExtractSpeechText builds the read-aloud text for a note's SOAP body
func ExtractSpeechText(soap *SOAPNote) string {
	if soap == nil {
		return ""
	}

	var sections []string
	if soap.Subjective != nil && soap.Subjective.PresentIllness != "" {
		sections = append(sections, "主観的情報: "+soap.Subjective.PresentIllness)
	}
	if soap.Objective != nil && soap.Objective.PhysicalExam != "" {
		sections = append(sections, "客観的情報: "+soap.Objective.PhysicalExam)
	}
	if soap.Assessment != nil && soap.Assessment.Diagnosis != "" {
		sections = append(sections, "評価: "+soap.Assessment.Diagnosis)
	}
	if soap.Plan != nil && soap.Plan.Treatment != "" {
		sections = append(sections, "計画: "+soap.Plan.Treatment)
	}

	return strings.Join(sections, "\n")
}

// TimestampForFilename formats t in UTC as YYYY-MM-DDTHH-MM-SS
func TimestampForFilename(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}
