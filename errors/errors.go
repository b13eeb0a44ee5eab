// Package errors provides the error handling system of the prompt2json
// service. It includes structured error types, JSON response formatting,
// request ID tracking and integrated logging with Uber's zap logger.
//
// Every error response carries an "error" field with a human readable
// message so that clients can rely on a single key regardless of the failure:
//
//	{"error": "Prompt must be at least 3 characters long", "type": "validation_error", "request_id": "..."}
//
// Basic usage:
//
//	// Type-specific error with the request ID taken from the response headers
//	errors.ErrorWithType(w, "Invalid JSON body", errors.BadRequestError, http.StatusBadRequest)
//
//	// Constructed error with context
//	errors.WriteError(w, errors.NewValidationError(requestID, err.Error(), nil))
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the zap logger used by the package. It starts with a
// production configuration and can be replaced with SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger replaces DefaultLogger. A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes failures for clients.
type ErrorType string

const (
	// ValidationError is a prompt that failed validation
	ValidationError ErrorType = "validation_error"

	// BadRequestError is a body that could not be decoded or lacks required fields
	BadRequestError ErrorType = "bad_request"

	// NotFoundError is an unknown route
	NotFoundError ErrorType = "not_found"

	// MethodNotAllowedError is a known route called with the wrong method
	MethodNotAllowedError ErrorType = "method_not_allowed"

	// RateLimitError is a client over its request budget
	RateLimitError ErrorType = "rate_limit_error"

	// InternalError is any unexpected failure while transforming
	InternalError ErrorType = "internal_error"

	// UnavailableError is returned while the transform circuit is open
	UnavailableError ErrorType = "unavailable"

	// ConfigError is an invalid or unreadable configuration
	ConfigError ErrorType = "config_error"
)

// ServiceError implements the error interface and carries everything needed
// to answer an HTTP request. The wrapped cause is kept for logging only.
type ServiceError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"error"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error combines the error type, message and wrapped cause.
func (e *ServiceError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &ServiceError{Type: RateLimitError})
// recognises any rate limit error.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Error("failed to encode error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// ErrorWithType writes an error of the given type. The request ID is read
// from the X-Request-ID response header when the RequestID middleware ran.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &ServiceError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
