// Package embeddings provides vector embedding generation and the
// normalization/similarity helpers the vector store and path scorer depend
// on.
package embeddings

import (
	"context"
	"os"
	"strconv"
	"time"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany generates embeddings for multiple texts, batching requests
	// to the underlying endpoint.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed embedding dimension.
	Dimension() int

	// Model returns the model identifier.
	Model() string
}

// Config holds embedding client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Dimension     int
	BatchSize     int
	Timeout       time.Duration
	CacheEnabled  bool
}

// DefaultConfig returns default embedding configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:        "default",
		Dimension:    1024,
		BatchSize:    100,
		Timeout:      5 * time.Second,
		CacheEnabled: true,
	}
}

// ConfigFromEnv overlays environment variables onto DefaultConfig.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("EMBEDDINGS_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("EMBEDDINGS_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("EMBEDDINGS_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("EMBEDDINGS_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dimension = n
		}
	}
	if v := os.Getenv("EMBEDDINGS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("EMBEDDINGS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if os.Getenv("EMBEDDINGS_CACHE_ENABLED") == "false" {
		cfg.CacheEnabled = false
	}

	return cfg
}
