package embeddings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/embeddings"
)

func TestCachingEmbedderReusesCachedVector(t *testing.T) {
	mock := embeddings.NewMockEmbedder(8)
	cache := embeddings.NewContentCache()
	caching := embeddings.NewCachingEmbedder(mock, cache)

	v1, err := caching.Embed(context.Background(), "hello")
	require.NoError(t, err)

	mock.SetFailOnEmbed(true) // inner embedder would now fail on a cache miss
	v2, err := caching.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestCachingEmbedderEmbedManyPartialHit(t *testing.T) {
	mock := embeddings.NewMockEmbedder(8)
	cache := embeddings.NewContentCache()
	caching := embeddings.NewCachingEmbedder(mock, cache)

	_, err := caching.Embed(context.Background(), "a")
	require.NoError(t, err)

	results, err := caching.EmbedMany(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	cached, _ := cache.Get("a")
	assert.Equal(t, cached, results[0])
	assert.Equal(t, 3, cache.Size())
}

func TestCachingEmbedderEmbedManyEmptyInput(t *testing.T) {
	mock := embeddings.NewMockEmbedder(8)
	caching := embeddings.NewCachingEmbedder(mock, embeddings.NewContentCache())

	results, err := caching.EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
