// Package retry provides bounded exponential backoff for transient backend
// call failures.
package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Delay computes the backoff for the given attempt.
func (c Config) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do runs fn, retrying up to cfg.MaxRetries times as long as retryable
// reports the returned error as transient. The delay between attempts grows
// exponentially and honors context cancellation. The last error is returned
// once attempts are exhausted or the error is not retryable.
func Do(ctx context.Context, cfg Config, logger *zap.Logger, operation string, retryable func(error) bool, fn func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Delay(attempt - 1)
			logger.Info("retrying backend call",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Duration("delay", delay))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		logger.Warn("backend call failed, will retry",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	return lastErr
}
