// Package apierror provides the JSON error envelope returned by the HTTP API.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code represents an error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeRequestTooLarge    Code = "REQUEST_TOO_LARGE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeUpstreamFailed     Code = "UPSTREAM_FAILED"
	CodeUpstreamDenied     Code = "UPSTREAM_DENIED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT"
)

// Error represents a standardized API error.
type Error struct {
	Status  int    `json:"-"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	// Err is logged, never sent to the client.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the wire form of an Error.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to its wire form.
func (e *Error) ToResponse(requestID string) Response {
	return Response{
		Error:     string(e.Code),
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}

// WriteJSONWithRequestID writes the error as JSON, echoing the request ID
// in the body and the X-Request-ID header when set.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse(requestID))
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError attaches the internal cause.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationFailed creates a 422 Unprocessable Entity error.
func ValidationFailed(message string, details any) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidationFailed, message).WithDetails(details)
}

// RequestTooLarge creates a 413 error for bodies over the configured limit.
func RequestTooLarge(limit int64) *Error {
	return New(http.StatusRequestEntityTooLarge, CodeRequestTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes", limit))
}

// RateLimitExceeded creates a 429 Too Many Requests error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// UpstreamFailed creates a 502 error for a dataset source that could not be
// read. The message is shown to the user and should say how to fix it.
func UpstreamFailed(message string, err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamFailed, message).WithError(err)
}

// UpstreamDenied creates a 502 error for a source that refused access.
func UpstreamDenied(message string, err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamDenied, message).WithError(err)
}

// Timeout creates a 504 error.
func Timeout() *Error {
	return New(http.StatusGatewayTimeout, CodeTimeout, "Request timed out")
}

// InternalError creates a 500 Internal Server Error hiding err.
func InternalError(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternalError, "An internal error occurred").WithError(err)
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}
