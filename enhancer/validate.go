package enhancer

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinPromptLength is the minimum number of characters after trimming.
	MinPromptLength = 3

	// MaxPromptLength is the maximum number of characters of the raw prompt.
	MaxPromptLength = 5000
)

// ValidationError describes why a prompt was rejected. Message is safe to
// return to clients as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Sentinel validation failures, comparable with errors.Is.
var (
	ErrNotString = &ValidationError{Message: "Prompt must be a non-empty string"}
	ErrTooShort  = &ValidationError{Message: "Prompt must be at least 3 characters long"}
	ErrTooLong   = &ValidationError{Message: "Prompt must be less than 5000 characters"}
)

// Validate checks a candidate prompt. It accepts any value because prompts
// usually arrive from decoded JSON where the type is not guaranteed.
// Lengths are counted in characters, not bytes.
func Validate(prompt any) error {
	s, ok := prompt.(string)
	if !ok || s == "" {
		return ErrNotString
	}
	if utf8.RuneCountInString(strings.TrimSpace(s)) < MinPromptLength {
		return ErrTooShort
	}
	if utf8.RuneCountInString(s) > MaxPromptLength {
		return ErrTooLong
	}
	return nil
}
