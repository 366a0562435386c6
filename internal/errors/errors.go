// FilePath: internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeDatabase          ErrorType = "database"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeDomain            ErrorType = "domain"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	ErrorTypeConsistency       ErrorType = "consistency"
	ErrorTypeInternal          ErrorType = "internal"
	ErrorTypeUnavailable       ErrorType = "service_unavailable"
)

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func newError(t ErrorType, code int, msg string, err error) *APIError {
	return &APIError{
		Type:    t,
		Message: msg,
		Code:    code,
		err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, msg, err)
}

// NewDatabaseError creates a new database error. Lock timeouts, failed commits and
// connection problems all end up here; callers are expected to retry.
func NewDatabaseError(msg string, err error) *APIError {
	return newError(ErrorTypeDatabase, http.StatusServiceUnavailable, msg, err)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, msg, err)
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string, err error) *APIError {
	return newError(ErrorTypeConflict, http.StatusConflict, msg, err)
}

// NewDomainError creates an error for requests that are well formed but not
// allowed in the current state of the device or session
func NewDomainError(msg string, err error) *APIError {
	return newError(ErrorTypeDomain, http.StatusUnprocessableEntity, msg, err)
}

// NewInvalidTransitionError creates an error for a rejected status transition
func NewInvalidTransitionError(msg string, err error) *APIError {
	return newError(ErrorTypeInvalidTransition, http.StatusConflict, msg, err)
}

// NewConsistencyError creates an error for stored state that breaks an invariant
func NewConsistencyError(msg string, err error) *APIError {
	return newError(ErrorTypeConsistency, http.StatusInternalServerError, msg, err)
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, msg, err)
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(msg string, err error) *APIError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, msg, err)
}

// TypeOf returns the ErrorType of the first APIError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ""
}

// AsAPIError returns err as an *APIError, wrapping unknown errors as internal
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError("unexpected error", err)
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsDatabase checks if an error is a Database error
func IsDatabase(err error) bool {
	return TypeOf(err) == ErrorTypeDatabase
}

// IsConflict checks if an error is a Conflict error
func IsConflict(err error) bool {
	return TypeOf(err) == ErrorTypeConflict
}

// IsDomain checks if an error is a Domain error
func IsDomain(err error) bool {
	return TypeOf(err) == ErrorTypeDomain
}

// IsInvalidTransition checks if an error is an InvalidTransition error
func IsInvalidTransition(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidTransition
}
