package embeddings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/apperrors"
	"litkg/internal/embeddings"
)

func TestCosineSimilarityIdenticalVectorIsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	sim, err := embeddings.CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	sim, err := embeddings.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityLengthMismatchIsFatal(t *testing.T) {
	_, err := embeddings.CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrInvalidParameter, se.Code)
}

func TestCosineSimilarityZeroVectorIsZeroNotNaN(t *testing.T) {
	sim, err := embeddings.CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestNormalizeVectorUnitVectorUnchanged(t *testing.T) {
	v := []float32{1, 0, 0}
	got := embeddings.NormalizeVector(v)
	assert.InDelta(t, 1.0, got[0], 1e-6)
}

func TestNormalizeVectorZeroVectorStaysZero(t *testing.T) {
	v := []float32{0, 0, 0}
	got := embeddings.NormalizeVector(v)
	assert.Equal(t, []float32{0, 0, 0}, got)
}
