package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_SetTypeAndCode(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		typ  ErrorType
		code int
	}{
		{"validation", NewValidationError("bad", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"database", NewDatabaseError("db", nil), ErrorTypeDatabase, http.StatusServiceUnavailable},
		{"not found", NewNotFoundError("nf", nil), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("c", nil), ErrorTypeConflict, http.StatusConflict},
		{"domain", NewDomainError("d", nil), ErrorTypeDomain, http.StatusUnprocessableEntity},
		{"transition", NewInvalidTransitionError("t", nil), ErrorTypeInvalidTransition, http.StatusConflict},
		{"consistency", NewConsistencyError("c", nil), ErrorTypeConsistency, http.StatusInternalServerError},
		{"internal", NewInternalError("i", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	base := NewConflictError("device already part of another session", nil)
	wrapped := fmt.Errorf("joining: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsDatabase(wrapped))
	assert.Equal(t, ErrorTypeConflict, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}

func TestAPIError_UnwrapsInternalError(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewDatabaseError("failed to update device", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAsAPIError_WrapsUnknownErrors(t *testing.T) {
	apiErr := AsAPIError(stderrors.New("boom"))
	assert.Equal(t, ErrorTypeInternal, apiErr.Type)

	known := NewNotFoundError("device not found", nil)
	assert.Same(t, known, AsAPIError(known))
}
