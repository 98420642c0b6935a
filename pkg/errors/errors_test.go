package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrBackend, "pools lookup failed")
	wrapped := fmt.Errorf("resolve: %w", typed)

	got := FromError(wrapped)
	assert.Equal(t, ErrBackend.Code, got.Code)
	assert.Equal(t, http.StatusBadGateway, got.Status)
	assert.Equal(t, "pools lookup failed", got.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestIsComparesCodes(t *testing.T) {
	err := Wrap(fmt.Errorf("status 500"), ErrBackend.Code, ErrBackend.Status, "commit failed")
	assert.True(t, Is(err, ErrBackend))
	assert.False(t, Is(err, ErrDataShape))
	assert.False(t, Is(nil, ErrBackend))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "class \"A\": select at least one slot")
	assert.NotEqual(t, ErrValidation.Message, clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}
