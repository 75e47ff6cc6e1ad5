package main

import (
	"net/http"

	"github.com/PaulBabatuyi/finance-organizer/internal/chat"
	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/finance"
	"github.com/PaulBabatuyi/finance-organizer/internal/logger"
	"github.com/PaulBabatuyi/finance-organizer/internal/middleware"
	"github.com/PaulBabatuyi/finance-organizer/internal/organizer"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errBadRequest marks request-shape failures detected by handlers.
var errBadRequest = errors.New("bad request")

// errInvalidCredentials is returned by login for unknown users and wrong
// passwords alike.
var errInvalidCredentials = errors.New("invalid credentials")

// statusOf maps service and store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, finance.ErrInvalidInput),
		errors.Is(err, finance.ErrInvalidRange),
		errors.Is(err, organizer.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrChatNotFound),
		errors.Is(err, organizer.ErrBoardNotFound),
		errors.Is(err, data.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, data.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Server errors are logged with
// the request context and reported with a generic message.
func writeError(c *gin.Context, err error, fields ...zap.Field) {
	code := statusOf(err)
	if code < http.StatusInternalServerError {
		c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
		return
	}

	fields = append(fields,
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("user_id", callerID(c)),
		zap.Error(err),
	)
	logger.Get().Error("request failed", fields...)
	_ = c.Error(err)

	msg := "internal server error"
	if errors.Is(err, chat.ErrGateway) {
		msg = "failed to communicate with the completion gateway"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, errors.Wrap(errBadRequest, err.Error()))
		return false
	}
	return true
}
