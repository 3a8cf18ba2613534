package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shupiange/mephisto-quant/observability"
	"github.com/shupiange/mephisto-quant/repository"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// WithRetry calls fn until it succeeds, the retries run out, or ctx ends.
// Only connection failures are retried; any other error is returned at once.
// Only startup connection uses it; store operations are never retried.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !errors.Is(err, repository.ErrConnectionFailure) {
			return err
		}
		if attempt < config.MaxRetries {
			observability.Warn("retrying",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"backoff", backoff,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
