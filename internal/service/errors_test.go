package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(NewValidationError("bad input")))
	assert.Equal(t, http.StatusConflict, StatusFor(NewConflictError("in progress")))
	assert.Equal(t, http.StatusConflict, StatusFor(NewDependencyError("store down", errors.New("timeout"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("anything else")))
}

func TestStatusForWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("charge failed: %w", NewValidationError("bad method"))
	assert.Equal(t, http.StatusBadRequest, StatusFor(wrapped))
}

func TestDependencyErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDependencyError("unable to claim idempotency key", cause)
	assert.ErrorIs(t, err, cause)
}
