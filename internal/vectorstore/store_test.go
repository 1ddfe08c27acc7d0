package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIDPassesThroughExistingUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, NormalizeID(id))
}

func TestNormalizeIDHashesNonUUIDDeterministically(t *testing.T) {
	first := NormalizeID("entity-123")
	second := NormalizeID("entity-123")
	assert.Equal(t, first, second)
	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, "entity-123", first)
}

func TestUpsertAndSearchSimilarRoundTrip(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "entities"))

	require.NoError(t, store.Upsert(ctx, "entities", "entity-gpt4", []float32{1, 0, 0}, "GPT-4", map[string]string{"type": "AIModel"}))
	require.NoError(t, store.Upsert(ctx, "entities", "entity-bert", []float32{0, 1, 0}, "BERT", map[string]string{"type": "AIModel"}))

	results, err := store.SearchSimilar(ctx, "entities", []float32{1, 0, 0}, 1, nil, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "entity-gpt4", results[0].InternalID)

	count, err := store.Count(ctx, "entities")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetByIDReturnsOriginalInternalID(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "entities"))
	require.NoError(t, store.Upsert(ctx, "entities", "entity-gpt4", []float32{1, 0, 0}, "GPT-4", nil))

	got, err := store.GetByID(ctx, "entities", "entity-gpt4")
	require.NoError(t, err)
	assert.Equal(t, "entity-gpt4", got.InternalID)
}

func TestSearchSimilarMissingCollectionErrors(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)

	_, err = store.SearchSimilar(context.Background(), "missing", []float32{1, 0}, 5, nil, 0)
	assert.Error(t, err)
}

func TestDeleteByIDRemovesVector(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "entities"))
	require.NoError(t, store.Upsert(ctx, "entities", "entity-gpt4", []float32{1, 0, 0}, "GPT-4", nil))

	require.NoError(t, store.DeleteByID(ctx, "entities", "entity-gpt4"))

	count, err := store.Count(ctx, "entities")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
