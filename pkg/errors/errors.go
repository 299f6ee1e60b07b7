package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes different error types
type ErrorType string

const (
	// Network errors
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeTimeout ErrorType = "timeout"

	// Authentication errors
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeSessionExpired ErrorType = "session_expired"

	// Request errors
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeServer     ErrorType = "server"

	// Realtime errors
	ErrorTypeTransport          ErrorType = "transport"
	ErrorTypeHeartbeatTimeout   ErrorType = "heartbeat_timeout"
	ErrorTypeReconnectExhausted ErrorType = "reconnect_exhausted"
	ErrorTypeServerPushed       ErrorType = "server_pushed"
	ErrorTypeMalformedEnvelope  ErrorType = "malformed_envelope"

	// Local cache writes that were rolled back
	ErrorTypeMutationFailed ErrorType = "mutation_failed"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
	RetryAfter int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil && e.Type == ErrorTypeMutationFailed {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// WithSuggestion adds a helpful suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *Error) HasSuggestion() bool {
	return e.Suggestion != ""
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new typed error
func New(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// Is reports whether err is a typed error of the given type.
func Is(err error, errorType ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// NetworkError creates a network error
func NetworkError(message string) *Error {
	err := New(ErrorTypeNetwork, message, nil)
	err.Suggestion = "Check your internet connection and try again."
	return err
}

// TimeoutError creates a timeout error
func TimeoutError() *Error {
	err := New(ErrorTypeTimeout, "Request timed out", nil)
	err.Suggestion = "The server is taking too long to respond. Try again in a moment."
	return err
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError() *Error {
	err := New(ErrorTypeUnauthorized, "Invalid or missing session token", nil)
	err.Suggestion = "Run 'community auth login' with a fresh token."
	return err
}

// SessionExpiredError creates a session expired error
func SessionExpiredError() *Error {
	err := New(ErrorTypeSessionExpired, "Your session has expired", nil)
	err.Suggestion = "Run 'community auth login' to refresh your session."
	return err
}

// ForbiddenError creates a forbidden error
func ForbiddenError() *Error {
	err := New(ErrorTypeForbidden, "Access denied", nil)
	err.Suggestion = "Your role in this community does not allow this action."
	return err
}

// ValidationError creates a validation error
func ValidationError(field, reason string) *Error {
	return New(ErrorTypeValidation, fmt.Sprintf("Validation error: %s - %s", field, reason), nil)
}

// ServerError creates a server error
func ServerError() *Error {
	err := New(ErrorTypeServer, "Server error", nil)
	err.Suggestion = "The server encountered an error. Try again in a few moments."
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, identifier string) *Error {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", resourceType, identifier), nil)
}

// RateLimitError creates a rate limit error
func RateLimitError(retryAfter int) *Error {
	err := New(ErrorTypeRateLimit, "Rate limit exceeded. Too many requests.", nil)
	err.RetryAfter = retryAfter
	err.Suggestion = fmt.Sprintf("Please wait %d seconds before trying again.", retryAfter)
	return err
}

// ConflictError creates a conflict error
func ConflictError(message string) *Error {
	return New(ErrorTypeConflict, message, nil)
}

// TransportError wraps a realtime connect or read failure.
func TransportError(cause error) *Error {
	return New(ErrorTypeTransport, "Realtime connection error", cause)
}

// HeartbeatTimeoutError is recorded when no pong arrives in time.
func HeartbeatTimeoutError() *Error {
	return New(ErrorTypeHeartbeatTimeout, "Pong timeout", nil)
}

// ReconnectExhaustedError is recorded when the backoff table runs out.
func ReconnectExhaustedError(attempts int) *Error {
	err := New(ErrorTypeReconnectExhausted, fmt.Sprintf("Gave up after %d reconnect attempts", attempts), nil)
	err.Suggestion = "Falling back to polling. Reconnect manually once the server is reachable."
	return err
}

// ServerPushedError wraps an error envelope sent by the server.
func ServerPushedError(code, message string) *Error {
	err := New(ErrorTypeServerPushed, message, nil)
	if code != "" {
		err.Message = fmt.Sprintf("%s (%s)", message, code)
	}
	return err
}

// MalformedEnvelopeError wraps an envelope decode failure.
func MalformedEnvelopeError(cause error) *Error {
	return New(ErrorTypeMalformedEnvelope, "Malformed envelope", cause)
}

// MutationFailedError wraps the network error of a rolled back optimistic write.
func MutationFailedError(operation string, cause error) *Error {
	err := New(ErrorTypeMutationFailed, operation+" failed", cause)
	if c := CategorizeError(cause); c != nil {
		err.StatusCode = c.StatusCode
		err.Suggestion = c.Suggestion
	}
	return err
}

// statusCoder is implemented by API errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// CategorizeError converts a standard error into a typed Error
func CategorizeError(err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if e := fromStatus(sc.HTTPStatus(), err); e != nil {
			return e
		}
	}

	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "connection refused"):
		return NetworkError("Could not connect to server. Make sure it's running.")
	case strings.Contains(errMsg, "context deadline exceeded"), strings.Contains(errMsg, "timeout"):
		return TimeoutError()
	case strings.Contains(errMsg, "401") || strings.Contains(errMsg, "unauthorized"):
		return UnauthorizedError()
	case strings.Contains(errMsg, "403") || strings.Contains(errMsg, "forbidden"):
		return ForbiddenError()
	case strings.Contains(errMsg, "404") || strings.Contains(errMsg, "not found"):
		return NotFoundError("Resource", "unknown")
	case strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit"):
		return RateLimitError(60)
	case strings.Contains(errMsg, "500") || strings.Contains(errMsg, "server error"):
		return ServerError()
	default:
		return New(ErrorTypeUnknown, errMsg, err)
	}
}

func fromStatus(status int, cause error) *Error {
	var e *Error
	switch {
	case status == 401:
		e = UnauthorizedError()
	case status == 403:
		e = ForbiddenError()
	case status == 404:
		e = New(ErrorTypeNotFound, cause.Error(), nil)
	case status == 409:
		e = ConflictError(cause.Error())
	case status == 422 || status == 400:
		e = New(ErrorTypeValidation, cause.Error(), nil)
	case status == 429:
		e = RateLimitError(60)
	case status >= 500:
		e = ServerError()
	default:
		return nil
	}
	e.StatusCode = status
	e.Cause = cause
	return e
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	typed := CategorizeError(err)
	var sb strings.Builder

	sb.WriteString("Error")
	if typed.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(typed.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(typed.Error())
	sb.WriteString("\n")

	if typed.HasSuggestion() {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(typed.Suggestion)
		sb.WriteString("\n")
	}

	if typed.Type == ErrorTypeRateLimit && typed.RetryAfter > 0 {
		sb.WriteString(fmt.Sprintf("\nRetry in: %d seconds\n", typed.RetryAfter))
	}

	return sb.String()
}
