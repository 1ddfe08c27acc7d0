package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/config"
	"litkg/internal/embeddings"
	"litkg/internal/resilience"
)

func newUnguardedTestEmbedder(t *testing.T, handler http.HandlerFunc) *embeddings.HTTPEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &embeddings.Config{
		Endpoint:  server.URL,
		Model:     "test-model",
		Dimension: 3,
		BatchSize: 2,
		Timeout:   5 * time.Second,
	}
	guard := resilience.NewGuard("embedding-test", config.EndpointResilienceConfig{
		Algorithm: "token_bucket", MaxTokens: 1000, RefillPerSecond: 1000, FailureThreshold: 1000,
	})
	return embeddings.NewHTTPEmbedder(cfg, guard)
}

func TestHTTPEmbedderEmbedSingle(t *testing.T) {
	client := newUnguardedTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1, 2, 3}, "index": 0},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	v, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestHTTPEmbedderEmbedManyChunksByBatchSize(t *testing.T) {
	var calls int
	client := newUnguardedTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{float32(i)}, "index": i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	results, err := client.EmbedMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 3, calls, "5 texts at batch size 2 should take 3 round trips")
}

func TestHTTPEmbedderEmbedManyEmptyInputSkipsCall(t *testing.T) {
	called := false
	client := newUnguardedTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	results, err := client.EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestHTTPEmbedderErrorStatusPropagates(t *testing.T) {
	client := newUnguardedTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Embed(context.Background(), "hello")
	assert.Error(t, err)
}
