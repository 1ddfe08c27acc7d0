package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"litkg/internal/apperrors"
	"litkg/internal/config"
)

func TestGuardRejectsWhenRateLimited(t *testing.T) {
	cfg := config.EndpointResilienceConfig{Algorithm: "token_bucket", MaxTokens: 1, RefillPerSecond: 0, FailureThreshold: 5}
	g := NewGuard("embedding", cfg)

	_, err := g.Call(context.Background(), func(ctx context.Context) (any, error) { return "ok", nil })
	assert.NoError(t, err)

	_, err = g.Call(context.Background(), func(ctx context.Context) (any, error) { return "ok", nil })
	se, ok := apperrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ErrRateLimited, se.Code)
}

func TestGuardPropagatesCallError(t *testing.T) {
	cfg := config.EndpointResilienceConfig{Algorithm: "token_bucket", MaxTokens: 5, RefillPerSecond: 5, FailureThreshold: 5, MaxRequests: 1}
	g := NewGuard("llm", cfg)

	wantErr := errors.New("endpoint unavailable")
	_, err := g.Call(context.Background(), func(ctx context.Context) (any, error) { return nil, wantErr })
	assert.Error(t, err)
}
