package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error is an application error with the HTTP status it maps to. It renders
// as {"error": Message}.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code and message so wrapped copies of the sentinels below
// still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of base carrying err as its cause.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

var (
	ErrBadRequest         = New(http.StatusBadRequest, "bad request", nil)
	ErrInvalidPayload     = New(http.StatusBadRequest, "invalid payload", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "unauthorized", nil)
	ErrInvalidToken       = New(http.StatusUnauthorized, "invalid token", nil)
	ErrNotFound           = New(http.StatusNotFound, "not found", nil)
	ErrConflict           = New(http.StatusConflict, "conflict", nil)
	ErrTooManyRequests    = New(http.StatusTooManyRequests, "rate limit exceeded", nil)
	ErrRequestFailed      = New(http.StatusInternalServerError, "request failed", nil)
	ErrUnauthorizedMethod = New(http.StatusInternalServerError, "unauthorized method", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "service unavailable", nil)
)

// Respond writes err as JSON and aborts the chain. Errors that are not *Error
// are reported as 500 "request failed" without leaking their text.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Wrap(ErrRequestFailed, err)
	}
	c.AbortWithStatusJSON(appErr.Code, appErr)
}

// ErrorMiddleware renders the last error pushed with c.Error once the
// handler chain finishes, unless a response was already written.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var appErr *Error
		if !errors.As(err, &appErr) || appErr.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		if c.Writer.Written() {
			return
		}
		Respond(c, err)
	}
}
