package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/leafscan/internal/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

func newErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// handleError logs err with a correlation id and writes the error body.
func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	resp := newErrorResponse(err, message, code)
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", c.Path()),
		logger.String("ip", c.RealIP()),
		logger.Int("code", code),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= 500 {
		s.log.Error(message, fields...)
	} else {
		s.log.Debug(message, fields...)
	}
	return c.JSON(code, resp)
}
