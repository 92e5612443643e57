// Package errors provides the standardized error taxonomy of the loan checker
// and its mapping onto HTTP responses.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidApplication ErrorCode = "INVALID_APPLICATION"
	ErrCodeFormNotFound       ErrorCode = "FORM_NOT_FOUND"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	ErrCodeModelRequestFailed  ErrorCode = "MODEL_REQUEST_FAILED"
	ErrCodeModelTimeout        ErrorCode = "MODEL_TIMEOUT"
	ErrCodeMalformedModelOuput ErrorCode = "MALFORMED_MODEL_OUTPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidApplicationError carries every violated field constraint in Metadata["violations"].
func NewInvalidApplicationError(violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidApplication,
		Message:   "Loan application failed validation",
		Details:   strings.Join(violations, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": violations},
		Timestamp: time.Now().UTC(),
	}
}

func NewFormNotFoundError(formID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFormNotFound,
		Message:   "Form not found",
		Details:   fmt.Sprintf("formId: %s", formID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Rate limit exceeded",
		Details:   fmt.Sprintf("retry after %s", retryAfter),
		Retryable: true,
		Metadata:  map[string]interface{}{"retryAfterSeconds": int(retryAfter.Seconds())},
		Timestamp: time.Now().UTC(),
	}
}

func NewModelRequestFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelRequestFailed,
		Message:   "Model provider request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewModelTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelTimeout,
		Message:   "Model provider did not finish in time",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewMalformedModelOutputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedModelOuput,
		Message:   "Model output does not match the assessment schema",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

var httpStatusMapping = map[ErrorCode]int{
	ErrCodeInvalidRequest:      http.StatusBadRequest,
	ErrCodeInvalidApplication:  http.StatusUnprocessableEntity,
	ErrCodeFormNotFound:        http.StatusNotFound,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeModelRequestFailed:  http.StatusBadGateway,
	ErrCodeModelTimeout:        http.StatusGatewayTimeout,
	ErrCodeMalformedModelOuput: http.StatusBadGateway,
	ErrCodeInternal:            http.StatusInternalServerError,
}

// HTTPStatus returns the response status for code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := httpStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "MODEL") || strings.HasPrefix(codeStr, "MALFORMED"):
		return "MODEL"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case code == ErrCodeRateLimited:
		return "THROTTLING"
	case code == ErrCodeFormNotFound:
		return "NOT_FOUND"
	default:
		return "OTHER"
	}
}
