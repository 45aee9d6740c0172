package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/resultcache/board"
	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/observe"
	"github.com/jonwraymond/resultcache/resilience"
	"github.com/jonwraymond/resultcache/settings"
)

// errMalformedBody marks request bodies that are not valid JSON for the
// target resource.
var errMalformedBody = errors.New("server: malformed request body")

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

// classify maps an error to a status code and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, board.ErrInvalidName),
		errors.Is(err, board.ErrInvalidFeature),
		errors.Is(err, settings.ErrInvalidSettings):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, settings.ErrReadOnly):
		return http.StatusMethodNotAllowed, "READ_ONLY"
	case errors.Is(err, resilience.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case resilience.IsRejection(err),
		errors.Is(err, cache.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) respondWithError(c *gin.Context, err error) {
	status, code := classify(err)

	ctx := c.Request.Context()
	fields := []observe.Field{
		observe.F("method", c.Request.Method),
		observe.F("path", c.Request.URL.Path),
		observe.F("status", status),
		observe.F("error", err),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(ctx, "request failed", fields...)
	} else {
		s.log.Debug(ctx, "request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:  err.Error(),
		Code:   code,
		Status: status,
	})
}
