// Package shared provides domain errors and identifiers used across services.
package shared

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation error")
	ErrUnavailable  = errors.New("unavailable")
)

// DomainError represents a domain-specific error.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

func newDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError wraps ErrNotFound with the missing resource.
func NewNotFoundError(resource, key string) error {
	return newDomainError("NOT_FOUND", fmt.Sprintf("%s %q not found", resource, key), ErrNotFound)
}

// NewValidationError wraps ErrValidation with a message.
func NewValidationError(message string) error {
	return newDomainError("VALIDATION", message, ErrValidation)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation or invalid input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsUnavailable checks if a dependency could not serve the request.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
