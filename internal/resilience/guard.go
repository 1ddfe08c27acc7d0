package resilience

import (
	"context"
	"time"

	"litkg/internal/apperrors"
	"litkg/internal/config"
)

// Guard composes a Limiter and a CircuitBreaker for one outbound endpoint.
// Every outbound LLM, embedding, and graph call passes through a Guard: the
// call path is limiter -> breaker -> endpoint. The in-process vector store is
// not guarded.
type Guard struct {
	limiter Limiter
	breaker *CircuitBreaker
	name    string
}

// NewGuard builds a Guard from an EndpointResilienceConfig.
func NewGuard(name string, cfg config.EndpointResilienceConfig) *Guard {
	var limiter Limiter
	switch cfg.Algorithm {
	case "sliding_window":
		limiter = NewSlidingWindow(cfg.WindowMs, cfg.MaxRequests)
	default:
		limiter = NewTokenBucket(cfg.MaxTokens, cfg.RefillPerSecond)
	}

	breakerCfg := DefaultBreakerConfig(name)
	if cfg.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutMs > 0 {
		breakerCfg.ResetTimeout = time.Duration(cfg.ResetTimeoutMs) * time.Millisecond
	}

	return &Guard{
		limiter: limiter,
		breaker: NewCircuitBreaker(breakerCfg),
		name:    name,
	}
}

// Call runs fn if admission is granted by both the limiter and the breaker.
// It returns a typed ERR_5001_RATE_LIMITED error if the limiter rejects the
// call, and ERR_5002_CIRCUIT_OPEN if the breaker is open/saturated.
func (g *Guard) Call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if !g.limiter.TryAcquire() {
		return nil, apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded for "+g.name)
	}

	result, err := g.breaker.Execute(ctx, fn)
	if err != nil {
		if IsOpenError(err) {
			return nil, apperrors.New(apperrors.ErrCircuitOpen, "circuit breaker open for "+g.name).WithCause(err)
		}
		return nil, err
	}
	return result, nil
}
