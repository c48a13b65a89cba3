package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/middleware"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Field         string `json:"field,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// classifyError maps an error to a status, code and user-facing message.
// fallback is the message used for unexpected failures.
func classifyError(err error, fallback string) (int, errorResponse) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: verr.Message, Code: domain.ErrCodeValidation, Field: verr.Field}
	case errors.Is(err, domain.ErrEmptyTranscript):
		return http.StatusBadRequest, errorResponse{Error: domain.MsgEmptyTranscript, Code: domain.ErrCodeInvalidInput}
	case errors.Is(err, domain.ErrNoteNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: domain.ErrCodeNotFound}
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, errorResponse{Error: fallback, Code: domain.ErrCodeStorage}
	case errors.Is(err, domain.ErrLLMRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: domain.MsgRateLimited, Code: domain.ErrCodeRateLimit}
	case errors.Is(err, domain.ErrLLMUnauthorized):
		return http.StatusInternalServerError, errorResponse{Error: domain.MsgInvalidAPIKey, Code: domain.ErrCodeLLM}
	case errors.Is(err, domain.ErrLLMUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: fallback, Code: domain.ErrCodeLLM}
	case errors.Is(err, domain.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: domain.ErrCodeConfiguration}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: fallback, Code: domain.ErrCodeLLM}
	default:
		return http.StatusInternalServerError, errorResponse{Error: fallback, Code: domain.ErrCodeInternalServer}
	}
}

// respondError logs err and writes the mapped error response
func (s *Server) respondError(c *gin.Context, err error, fallback string) {
	status, body := classifyError(err, fallback)
	body.CorrelationID = c.GetString(middleware.CorrelationIDKey)

	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": body.CorrelationID,
		"status":         status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:         message,
		Code:          domain.ErrCodeInvalidInput,
		CorrelationID: c.GetString(middleware.CorrelationIDKey),
	})
}

func (s *Server) respondUnavailable(c *gin.Context, feature string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{
		Error:         feature + " is not configured",
		Code:          domain.ErrCodeConfiguration,
		CorrelationID: c.GetString(middleware.CorrelationIDKey),
	})
}
