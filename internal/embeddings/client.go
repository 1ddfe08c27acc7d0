package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"litkg/internal/apperrors"
	"litkg/internal/resilience"
)

// HTTPEmbedder implements Embedder against a generic HTTP embedding
// endpoint: POST a text, get back a fixed-dimension float vector. Requests
// pass through a resilience.Guard so rate limiting and circuit breaking are
// applied uniformly with the graph and LLM endpoints.
type HTTPEmbedder struct {
	client    *http.Client
	guard     *resilience.Guard
	endpoint  string
	apiKey    string
	model     string
	dimension int
	batchSize int
}

// NewHTTPEmbedder creates an HTTP-backed embedder guarded by the given
// resilience.Guard.
func NewHTTPEmbedder(cfg *Config, guard *resilience.Guard) *HTTPEmbedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &HTTPEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		guard:     guard,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, apperrors.New(apperrors.ErrEmbeddingFailed, "embedding endpoint returned no vectors")
	}
	return vectors[0], nil
}

// EmbedMany generates embeddings for multiple texts, partitioning the
// request into chunks of at most batchSize and preserving input order. An
// empty input returns an empty output without calling the endpoint.
func (e *HTTPEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, chunk...)
	}
	return result, nil
}

func (e *HTTPEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := e.guard.Call(ctx, func(ctx context.Context) (any, error) {
		return e.doRequest(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return raw.([][]float32), nil
}

func (e *HTTPEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, err).WithStage("marshal-request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, err).WithStage("build-request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternalTimeout, err).WithStage("embed-call")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, err).WithStage("read-response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrEmbeddingFailed, fmt.Sprintf("embedding endpoint returned status %d", resp.StatusCode)).WithDetails(string(respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLLMParseFailed, err).WithStage("decode-response")
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

// Dimension returns the fixed embedding dimension.
func (e *HTTPEmbedder) Dimension() int {
	return e.dimension
}

// Model returns the model identifier.
func (e *HTTPEmbedder) Model() string {
	return e.model
}
