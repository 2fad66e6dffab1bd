package resilience

import (
	"context"
	"time"
)

const (
	DefaultRetryMaxAttempts   int           = 4
	DefaultRetryInitialDelay  time.Duration = 10 * time.Millisecond
	DefaultRetryMaxDelay      time.Duration = 200 * time.Millisecond
	DefaultRetryBackoffFactor float64       = 2.0
)

// RetryConfig is an exponential backoff policy. Only errors accepted by
// RetryableErrors are retried; a nil predicate retries nothing.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool
}

// DefaultRetryConfig is sized for version conflicts on a single route or
// session document. Callers set RetryableErrors.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   DefaultRetryMaxAttempts,
		InitialDelay:  DefaultRetryInitialDelay,
		MaxDelay:      DefaultRetryMaxDelay,
		BackoffFactor: DefaultRetryBackoffFactor,
	}
}

func (c *RetryConfig) retryable(err error) bool {
	return c.RetryableErrors != nil && c.RetryableErrors(err)
}

// next grows delay by the backoff factor, capped at MaxDelay
func (c *RetryConfig) next(delay time.Duration) time.Duration {
	grown := time.Duration(float64(delay) * c.BackoffFactor)
	if c.MaxDelay > 0 && grown > c.MaxDelay {
		return c.MaxDelay
	}
	return grown
}

// Retry calls fn until it succeeds or returns an error the config does not
// retry. After MaxAttempts calls the last error is returned as is, so callers
// can still match on it with errors.Is.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	delay := config.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil || !config.retryable(err) || attempt >= config.MaxAttempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = config.next(delay)
	}
}
