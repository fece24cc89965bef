package model

import (
	"errors"
	"fmt"
)

// Provisioning outcomes reported by the gateway. None of them is fatal for a
// service; callers classify them with errors.Is.
var (
	// ErrRateLimitExceeded is returned when a guarded call was rejected because
	// the rolling window is full. Retry on a later tick.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrNotFound is returned when the gateway does not know a VM.
	ErrNotFound = errors.New("vm not found")

	// ErrVMPending is returned when a VM is still waiting in the provisioning queue.
	ErrVMPending = errors.New("vm is still provisioning")

	// ErrQueueFull is returned when the provisioning queue has no free slot.
	ErrQueueFull = errors.New("provisioning queue is full")
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the status API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}
