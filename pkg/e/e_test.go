package e

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := Wrap("RecommendationUseCase.RelatedProducts", NewNotFoundError("Product", "P-42"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrModelNotLoaded))

	nf, ok := AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "Product ID P-42 not found", nf.Error())
	assert.Equal(t, "P-42", nf.ID)
}

func TestWrapKeepsChain(t *testing.T) {
	err := Wrap("outer", Wrap("inner", ErrInvalidCount))

	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Equal(t, "outer: inner: count must be a positive integer", err.Error())

	_, ok := AsNotFound(err)
	assert.False(t, ok)
}
