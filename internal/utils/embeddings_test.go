package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-6)

	got, err = CosineSimilarity([]float32{1, 0}, []float32{0, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-6)

	got, err = CosineSimilarity([]float32{1, 1}, []float32{-1, -1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-6)

	got, err = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = CosineSimilarity(nil, []float32{1})
	assert.ErrorIs(t, err, ErrEmptyVector)
	_, err = CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
