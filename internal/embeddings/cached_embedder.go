package embeddings

import "context"

// CachingEmbedder wraps an Embedder with a ContentCache, so identical text
// seen across documents in a batch (or across batches) only hits the
// underlying endpoint once.
type CachingEmbedder struct {
	inner Embedder
	cache *ContentCache
}

// NewCachingEmbedder wraps inner with cache.
func NewCachingEmbedder(inner Embedder, cache *ContentCache) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: cache}
}

// Embed returns the cached vector for text if present, otherwise calls the
// wrapped embedder and caches the result.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Put(text, v)
	return v, nil
}

// EmbedMany resolves cache hits directly and only calls the wrapped
// embedder for the texts that missed, preserving input order in the result.
func (e *CachingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			result[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	fetched, err := e.inner.EmbedMany(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range missIdx {
		result[idx] = fetched[i]
		e.cache.Put(missTexts[i], fetched[i])
	}

	return result, nil
}

// Dimension delegates to the wrapped embedder.
func (e *CachingEmbedder) Dimension() int { return e.inner.Dimension() }

// Model delegates to the wrapped embedder.
func (e *CachingEmbedder) Model() string { return e.inner.Model() }
