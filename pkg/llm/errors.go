package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes provider failures for retry decisions.
type ErrorType int8

const (
	ErrorTypeRateLimit ErrorType = iota
	ErrorTypeTransient
	ErrorTypeEmptyResponse
	ErrorTypeAuth
	ErrorTypeBadPrompt
	ErrorTypeUnknown
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified provider error.
type Error struct {
	Err        error
	Message    string
	Type       ErrorType
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %s: %v", e.Type, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type, e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt could succeed.
// Everything is retryable unless it is an auth or prompt problem.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt:
		return false
	default:
		return true
	}
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// Is checks if err is a classified error of the given type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the classified type, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err is worth retrying. Unclassified errors are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}
	return true
}

// Classify maps a raw provider error to an *Error. statusCode is the HTTP status
// when the SDK exposes one, or 0 to fall back to message inspection.
func Classify(err error, statusCode int) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request canceled")
	}

	if statusCode == 0 {
		statusCode = extractStatusCode(err.Error())
	}
	if t, ok := typeForStatus(statusCode); ok {
		return &Error{Type: t, Err: err, StatusCode: statusCode}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "connection", "network", "temporary", "eof", "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case containsAny(msg, "rate", "quota", "limit"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limiting detected")
	case containsAny(msg, "auth", "api key", "unauthorized", "permission"):
		return NewErrorWithCause(ErrorTypeAuth, err, "authentication error")
	case containsAny(msg, "invalid", "malformed", "too large", "context length"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "prompt or request error")
	}
	return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
}

func typeForStatus(code int) (ErrorType, bool) {
	switch code {
	case 401, 403:
		return ErrorTypeAuth, true
	case 429:
		return ErrorTypeRateLimit, true
	case 400, 404, 413, 422:
		return ErrorTypeBadPrompt, true
	case 500, 502, 503, 504, 529:
		return ErrorTypeTransient, true
	}
	return ErrorTypeUnknown, false
}

// extractStatusCode finds "status 429", "HTTP 503" and similar in an error message.
func extractStatusCode(s string) int {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"status code: ", "status code ", "status: ", "status ", "http "} {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		start := idx + len(pattern)
		if start+3 > len(s) {
			continue
		}
		code := 0
		valid := true
		for _, r := range s[start : start+3] {
			if r < '0' || r > '9' {
				valid = false
				break
			}
			code = code*10 + int(r-'0')
		}
		if valid {
			return code
		}
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
