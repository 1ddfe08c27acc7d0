package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	cfg := DefaultBreakerConfig("test-endpoint")
	cfg.FailureThreshold = 2
	cfg.MinRequests = 1
	cfg.ResetTimeout = 20 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	failing := func(ctx context.Context) (any, error) { return nil, errors.New("boom") }

	_, _ = cb.Execute(context.Background(), failing)
	_, _ = cb.Execute(context.Background(), failing)

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) { return "ok", nil })
	assert.True(t, IsOpenError(err))
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cfg := DefaultBreakerConfig("recover-endpoint")
	cfg.FailureThreshold = 1
	cfg.MinRequests = 1
	cfg.ResetTimeout = 10 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	_, _ = cb.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, errors.New("boom") })
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	result, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) { return "ok", nil })
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
