package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", Clone(ErrConflict, "already approved"))

	appErr := FromError(err)
	assert.Equal(t, ErrConflict.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "already approved", appErr.Message)
}

func TestFromErrorWrapsPlainError(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "reason is required")
	assert.Equal(t, "reason is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}
