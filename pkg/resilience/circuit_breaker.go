// Package resilience guards calls to collaborators: a circuit breaker for
// the Kafka producer and the HTTP clients, and a backoff retry for
// optimistic-concurrency conflicts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// ErrCircuitOpen wraps every call the breaker refused to run
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	DefaultMaxRequests           uint32        = 3
	DefaultInterval              time.Duration = 60 * time.Second
	DefaultTimeout               time.Duration = 30 * time.Second
	DefaultFailureThreshold      uint32        = 5
	DefaultFailureRatioThreshold float64       = 0.5
	DefaultMinRequestsToTrip     uint32        = 10
)

// CircuitBreakerConfig trips the breaker after FailureThreshold consecutive
// failures, or once at least MinRequestsToTrip calls in the current Interval
// failed at FailureRatioThreshold or worse. An open breaker probes again
// after Timeout with up to MaxRequests calls.
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	FailureThreshold      uint32
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32

	// IsSuccessful classifies errors; nil counts every error as a failure.
	// Rejections of the caller's own request should not trip the breaker.
	IsSuccessful func(err error) bool
}

func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           DefaultMaxRequests,
		Interval:              DefaultInterval,
		Timeout:               DefaultTimeout,
		FailureThreshold:      DefaultFailureThreshold,
		FailureRatioThreshold: DefaultFailureRatioThreshold,
		MinRequestsToTrip:     DefaultMinRequestsToTrip,
	}
}

func (c *CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= c.FailureThreshold {
		return true
	}
	return counts.Requests >= c.MinRequestsToTrip &&
		float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatioThreshold
}

type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *slog.Logger
}

// NewCircuitBreaker builds a breaker that logs and exports its state
// changes. logger and m may be nil.
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("breaker", config.Name)

	return &CircuitBreaker{
		name:   config.Name,
		logger: logger,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:         config.Name,
			MaxRequests:  config.MaxRequests,
			Interval:     config.Interval,
			Timeout:      config.Timeout,
			IsSuccessful: config.IsSuccessful,
			ReadyToTrip:  config.readyToTrip,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
				m.SetCircuitBreakerState(name, int(to))
				if to == gobreaker.StateOpen {
					m.RecordCircuitBreakerTrip(name)
				}
			},
		}),
	}
}

// Execute runs fn unless the breaker is open or its half-open quota is used
// up, in which case the error wraps ErrCircuitOpen. Errors from fn come back
// unchanged.
func Execute[T any](ctx context.Context, c *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := c.cb.Execute(func() (interface{}, error) { return fn(ctx) })
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.Warn("Circuit breaker rejected call", "reason", err.Error())
		return zero, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	case err != nil:
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}

func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreaker) Name() string {
	return c.name
}
