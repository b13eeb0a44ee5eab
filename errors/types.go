package errors

import (
	"fmt"
	"net/http"
)

// NewError creates a ServiceError with full control over its fields. Prefer
// the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ServiceError {
	return &ServiceError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError reports a prompt rejected by validation. The message is
// returned verbatim to the client.
//
// Example:
//
//	err := NewValidationError("req_123", "Prompt must be at least 3 characters long", nil)
func NewValidationError(requestID, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   details,
	}
}

// NewBadRequestError reports a request body that cannot be used at all,
// such as malformed JSON or a missing field.
func NewBadRequestError(requestID, message string, err error) *ServiceError {
	return &ServiceError{
		Type:      BadRequestError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError reports a client that exceeded its budget.
func NewRateLimitError(requestID string, limit int, window string) *ServiceError {
	return &ServiceError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"limit":  limit,
			"window": window,
		},
	}
}

// NewInternalError wraps an unexpected failure. The cause is embedded in the
// client-facing message.
// TODO: keep err out of Message and only log it.
func NewInternalError(requestID string, err error) *ServiceError {
	message := "Internal server error"
	if err != nil {
		message = fmt.Sprintf("Internal server error: %v", err)
	}
	return &ServiceError{
		Type:      InternalError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnavailableError reports that transforms are temporarily refused.
func NewUnavailableError(requestID string, err error) *ServiceError {
	return &ServiceError{
		Type:      UnavailableError,
		Message:   "Service temporarily unavailable",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewNotFoundError reports an unknown route.
func NewNotFoundError(requestID, path string) *ServiceError {
	return &ServiceError{
		Type:      NotFoundError,
		Message:   "Not found",
		Code:      http.StatusNotFound,
		RequestID: requestID,
		Details:   map[string]interface{}{"path": path},
	}
}

// NewMethodNotAllowedError reports a known route used with the wrong method.
func NewMethodNotAllowedError(requestID, method string) *ServiceError {
	return &ServiceError{
		Type:      MethodNotAllowedError,
		Message:   "Method not allowed",
		Code:      http.StatusMethodNotAllowed,
		RequestID: requestID,
		Details:   map[string]interface{}{"method": method},
	}
}
