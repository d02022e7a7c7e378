package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError         ErrorType = "server_error"
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeUpstreamUnreachable ErrorType = "upstream_unreachable"
	ErrorTypeUpstreamNonSuccess  ErrorType = "upstream_non_success"
	ErrorTypeMalformedFrame      ErrorType = "malformed_frame"
	ErrorTypeOrphanToolFragment  ErrorType = "orphan_tool_fragment"
	ErrorTypeEmptyResponse       ErrorType = "empty_response"
	ErrorTypeCancelled           ErrorType = "cancelled"
	ErrorTypeTimeout             ErrorType = "timeout"
)

// APIError represents a structured error with type, code, param, and message.
// Status carries the upstream HTTP status for upstream_non_success errors.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Type, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is reports whether target is an *APIError of the same type. This lets
// callers match categories with errors.Is against the sentinel values below.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// Sentinels for errors.Is matching by category.
var (
	ErrUpstreamUnreachable = &APIError{Type: ErrorTypeUpstreamUnreachable}
	ErrUpstreamNonSuccess  = &APIError{Type: ErrorTypeUpstreamNonSuccess}
	ErrMalformedFrame      = &APIError{Type: ErrorTypeMalformedFrame}
	ErrOrphanToolFragment  = &APIError{Type: ErrorTypeOrphanToolFragment}
	ErrEmptyResponse       = &APIError{Type: ErrorTypeEmptyResponse, Message: "empty response from server"}
	ErrCancelled           = &APIError{Type: ErrorTypeCancelled}
	ErrTimeout             = &APIError{Type: ErrorTypeTimeout}
)

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for a resource that does not exist.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewUpstreamUnreachableError creates an APIError for dial or network
// failures on the outbound connection.
func NewUpstreamUnreachableError(err error) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstreamUnreachable,
		Message: fmt.Sprintf("upstream connection error: %s", err.Error()),
	}
}

// NewUpstreamNonSuccessError creates an APIError for a non-2xx upstream
// status. The message is the captured upstream body (or a default).
func NewUpstreamNonSuccessError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("upstream returned HTTP %d", status)
	}
	return &APIError{
		Type:    ErrorTypeUpstreamNonSuccess,
		Status:  status,
		Message: message,
	}
}

// NewMalformedFrameError creates an APIError describing a frame that could
// not be parsed.
func NewMalformedFrameError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeMalformedFrame,
		Message: message,
	}
}

// NewOrphanToolFragmentError creates an APIError for a tool-call fragment
// that references an index no fragment with an id has opened.
func NewOrphanToolFragmentError(index int) *APIError {
	return &APIError{
		Type:    ErrorTypeOrphanToolFragment,
		Param:   fmt.Sprintf("tool_calls[%d]", index),
		Message: "fragment references an unopened tool call index",
	}
}

// NewTimeoutError creates an APIError for an exchange whose first response
// byte did not arrive in time.
func NewTimeoutError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTimeout,
		Message: message,
	}
}
