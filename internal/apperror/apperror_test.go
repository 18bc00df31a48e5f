package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest},
		{NewConflictError("dup", nil), http.StatusBadRequest},
		{NewAuthError("who", nil), http.StatusUnauthorized},
		{NewForbiddenError("no", nil), http.StatusForbidden},
		{NewNotFoundError("gone", nil), http.StatusNotFound},
		{NewInternalError("boom", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestErrorIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError("failed to save class", cause)

	assert.Equal(t, "failed to save class: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestFromWrapped(t *testing.T) {
	wrapped := fmt.Errorf("upsert: %w", NewForbiddenError("not your class", nil))

	got := From(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ForbiddenError, got.Type)
	assert.True(t, IsForbidden(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestFromPlainError(t *testing.T) {
	got := From(errors.New("unexpected"))
	assert.Equal(t, InternalError, got.Type)
	assert.Equal(t, "internal server error", got.Message)
}
