package athina

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a category of error for metrics and logging.
type ErrorCode string

// Error codes for categorization.
const (
	ErrCodeConfig     ErrorCode = "CONFIG"
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeNetwork    ErrorCode = "NETWORK"
	ErrCodeAPI        ErrorCode = "API"
	ErrCodeAuth       ErrorCode = "AUTH"
	ErrCodeRateLimit  ErrorCode = "RATE_LIMIT"
	ErrCodeShutdown   ErrorCode = "SHUTDOWN"
	ErrCodeQueue      ErrorCode = "QUEUE"
)

// Sentinel errors for configuration and client state.
var (
	ErrMissingAPIKey   = errors.New("athina: api key is required (set Config.APIKey or call SetAPIKey)")
	ErrMissingBaseURL  = errors.New("athina: base URL is required")
	ErrInvalidConfig   = errors.New("athina: invalid configuration")
	ErrClientClosed    = errors.New("athina: client is closed")
	ErrNilRequest      = errors.New("athina: request cannot be nil")
	ErrQueueFull       = errors.New("athina: delivery queue is full")
	ErrShutdownTimeout = errors.New("athina: shutdown timed out")
	ErrTraceEnded      = errors.New("athina: trace already ended")
)

// Sentinel APIError values for use with errors.Is. They match on status
// code only.
var (
	ErrUnauthorized = &APIError{StatusCode: 401}
	ErrForbidden    = &APIError{StatusCode: 403}
	ErrNotFound     = &APIError{StatusCode: 404}
	ErrRateLimited  = &APIError{StatusCode: 429}
)

// APIError is a non-success response from the Athina API. The service
// reports failures as {"error": "...", "details": {"message": "..."}}.
type APIError struct {
	StatusCode   int          `json:"-"`
	ErrorMessage string       `json:"error"`
	Details      ErrorDetails `json:"details"`
	Err          error        `json:"-"`
}

// ErrorDetails carries the human-readable part of an API error.
type ErrorDetails struct {
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.ErrorMessage != "" && e.Details.Message != "":
		return fmt.Sprintf("athina: API error (status %d): %s: %s", e.StatusCode, e.ErrorMessage, e.Details.Message)
	case e.ErrorMessage != "":
		return fmt.Sprintf("athina: API error (status %d): %s", e.StatusCode, e.ErrorMessage)
	case e.Details.Message != "":
		return fmt.Sprintf("athina: API error (status %d): %s", e.StatusCode, e.Details.Message)
	}
	return fmt.Sprintf("athina: API error (status %d)", e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches on status code, so errors.Is(err, athina.ErrRateLimited) works.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// IsServerError reports a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.IsServerError()
}

// Code returns the error category.
func (e *APIError) Code() ErrorCode {
	switch e.StatusCode {
	case 401, 403:
		return ErrCodeAuth
	case 429:
		return ErrCodeRateLimit
	}
	return ErrCodeAPI
}

// ValidationError reports a missing or malformed field on an explicit API
// call. It is returned synchronously to the caller.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("athina: validation error for field %q: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeValidation.
func (e *ValidationError) Code() ErrorCode {
	return ErrCodeValidation
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AsAPIError extracts an APIError from the error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// AsValidationError extracts a ValidationError from the error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.IsRetryable()
	}
	return false
}

// CodedError is implemented by errors that carry an ErrorCode.
type CodedError interface {
	error
	Code() ErrorCode
}

// ErrorCodeOf returns the category of err, or "" for nil.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	switch {
	case errors.Is(err, ErrMissingAPIKey), errors.Is(err, ErrMissingBaseURL), errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig
	case errors.Is(err, ErrClientClosed), errors.Is(err, ErrShutdownTimeout):
		return ErrCodeShutdown
	case errors.Is(err, ErrQueueFull):
		return ErrCodeQueue
	}
	return ErrCodeNetwork
}

// AsyncErrorOperation identifies the background operation that failed.
type AsyncErrorOperation string

// Async error operations.
const (
	AsyncOpDeliver  AsyncErrorOperation = "deliver"
	AsyncOpDispatch AsyncErrorOperation = "dispatch"
	AsyncOpHook     AsyncErrorOperation = "hook"
	AsyncOpShutdown AsyncErrorOperation = "shutdown"
)

// AsyncError is passed to Config.ErrorHandler when background work fails.
type AsyncError struct {
	// Time is when the error occurred.
	Time time.Time

	// Operation identifies the async operation that failed.
	Operation AsyncErrorOperation

	// Path is the API path being delivered to, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AsyncError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("athina async error [%s %s] at %s: %v",
			e.Operation, e.Path, e.Time.Format(time.RFC3339), e.Err)
	}
	return fmt.Sprintf("athina async error [%s] at %s: %v",
		e.Operation, e.Time.Format(time.RFC3339), e.Err)
}

// Unwrap returns the underlying error.
func (e *AsyncError) Unwrap() error {
	return e.Err
}

// NewAsyncError creates a new async error.
func NewAsyncError(op AsyncErrorOperation, err error) *AsyncError {
	return &AsyncError{Time: time.Now(), Operation: op, Err: err}
}
