package resilience

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures a CircuitBreaker instance for one outbound
// endpoint, mirroring the shape of a rate-limiter/breaker pair per
// endpoint described for the extraction and embedding call paths.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	ResetTimeout     time.Duration
	FailureThreshold int
	MinRequests      uint32
}

// DefaultBreakerConfig returns sensible defaults for name.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		ResetTimeout:     30 * time.Second,
		FailureThreshold: 5,
		MinRequests:      3,
	}
}

// CircuitBreaker wraps github.com/sony/gobreaker with the three-state
// admission gate described for outbound endpoints: closed passes every
// call through, open rejects fast, half-open admits one probe.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewCircuitBreaker builds a CircuitBreaker from cfg.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("[resilience] circuit breaker %q state change: %v -> %v", name, from, to)
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// State returns the breaker's current state.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Execute runs fn if the breaker is closed or half-open-and-probing, and
// records the outcome. ctx is accepted so call sites can thread deadlines
// into fn, but the breaker itself does not impose timeouts.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return c.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
}

// IsOpenError reports whether err came from a tripped or saturated breaker.
func IsOpenError(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
