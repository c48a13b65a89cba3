package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Empty transcript",
			code:      ErrCodeInvalidInput,
			message:   MsgEmptyTranscript,
			details:   "text field is blank",
			requestID: "req-123",
		},
		{
			name:      "LLM failure",
			code:      ErrCodeLLM,
			message:   MsgAnalysisFailed,
			details:   "upstream returned 502",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "model",
			message: "unsupported model",
			value:   "gpt-2",
		},
		{
			name:    "Integer validation error",
			field:   "limit",
			message: "Must be positive",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorConstants(t *testing.T) {
	constants := map[string]string{
		"ErrCodeInvalidInput":   ErrCodeInvalidInput,
		"ErrCodeLLM":            ErrCodeLLM,
		"ErrCodeConfiguration":  ErrCodeConfiguration,
		"ErrCodeStorage":        ErrCodeStorage,
		"ErrCodeNotFound":       ErrCodeNotFound,
		"ErrCodeRateLimit":      ErrCodeRateLimit,
		"ErrCodeInternalServer": ErrCodeInternalServer,
		"ErrCodeValidation":     ErrCodeValidation,
	}

	expectedValues := map[string]string{
		"ErrCodeInvalidInput":   "INVALID_INPUT",
		"ErrCodeLLM":            "LLM_ERROR",
		"ErrCodeConfiguration":  "CONFIGURATION_ERROR",
		"ErrCodeStorage":        "STORAGE_ERROR",
		"ErrCodeNotFound":       "NOT_FOUND",
		"ErrCodeRateLimit":      "RATE_LIMIT_EXCEEDED",
		"ErrCodeInternalServer": "INTERNAL_SERVER_ERROR",
		"ErrCodeValidation":     "VALIDATION_ERROR",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("analyze: %w", ErrEmptyTranscript)
	if !errors.Is(wrapped, ErrEmptyTranscript) {
		t.Errorf("Expected wrapped error to match ErrEmptyTranscript")
	}
	if ErrEmptyTranscript.Error() != MsgEmptyTranscript {
		t.Errorf("Expected %q, got %q", MsgEmptyTranscript, ErrEmptyTranscript.Error())
	}

	var verr *ValidationError
	if !errors.As(fmt.Errorf("resolve: %w", NewValidationError("model", "bad", "x")), &verr) {
		t.Errorf("Expected errors.As to find ValidationError")
	}
}
