// Package errors maps handler failures onto the JSON error bodies the
// dashboard API and WebSocket endpoints answer with.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

type ErrorType string

const (
	TypeUnauthorized ErrorType = "unauthorized"
	TypeRateLimited  ErrorType = "rate_limited"
	TypeInternal     ErrorType = "internal"
)

type typeInfo struct {
	status     int
	level      slog.Level
	logMessage string
}

// Unknown types are treated as internal.
var types = map[ErrorType]typeInfo{
	TypeUnauthorized: {http.StatusUnauthorized, slog.LevelInfo, "Unauthorized"},
	TypeRateLimited:  {http.StatusTooManyRequests, slog.LevelWarn, "Rate limit exceeded"},
	TypeInternal:     {http.StatusInternalServerError, slog.LevelError, "Internal error"},
}

func (t ErrorType) info() typeInfo {
	if info, ok := types[t]; ok {
		return info
	}
	return types[TypeInternal]
}

// Error is what handlers return for failures the client should see. Cause
// is logged, never sent.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any

	// RetryAfter is in seconds. Zero means no hint.
	RetryAfter int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int      { return e.Type.info().status }
func (e *Error) LogLevel() slog.Level { return e.Type.info().level }
func (e *Error) LogMessage() string   { return e.Type.info().logMessage }

func UnauthorizedError(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

// RateLimitedError also exposes the retry hint to the client as a context field.
func RateLimitedError(message string, retryAfter int) *Error {
	err := &Error{Type: TypeRateLimited, Message: message, RetryAfter: retryAfter}
	return err.WithField("retry_after_seconds", retryAfter)
}

func InternalError(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// WithField adds a client-visible context field.
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError returns err as *Error. Anything else becomes an internal
// error with a generic message, so raw error text never reaches the client.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}
	return InternalError("internal server error", err)
}
