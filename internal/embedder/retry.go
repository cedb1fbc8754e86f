package embedder

import (
	"context"
	"time"
)

// Retry configuration. Failures are retried at batch granularity; after
// exhaustion the batch error is reported to the caller, never a process
// abort.
const (
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff behavior.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the retry policy used against provider APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  InitialBackoffMs * time.Millisecond,
		MaxDelay:   MaxBackoffMs * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryWithBackoff executes fn with exponential backoff. Context
// cancellation short-circuits the retry loop.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < cfg.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
				if backoff > cfg.MaxDelay {
					backoff = cfg.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
