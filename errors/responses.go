package errors

import (
	"errors"
)

// ErrorResponse is the decoded form of an error body, used by clients and
// tests.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Type      ErrorType              `json:"type"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
