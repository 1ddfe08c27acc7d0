package embeddings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"litkg/internal/embeddings"
)

func TestContentCachePutGet(t *testing.T) {
	c := embeddings.NewContentCache()
	c.Put("hello", []float32{1, 2, 3})

	v, ok := c.Get("hello")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestContentCacheDisabled(t *testing.T) {
	c := embeddings.NewContentCache()
	c.SetEnabled(false)
	c.Put("hello", []float32{1})

	_, ok := c.Get("hello")
	assert.False(t, ok, "disabled cache should not store or serve entries")
}

func TestContentCacheClear(t *testing.T) {
	c := embeddings.NewContentCache()
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	assert.Equal(t, 2, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
