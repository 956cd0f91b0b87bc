package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls exponential backoff for starting and restarting
// capture sessions.
type RetryConfig struct {
	// MaxRetries is the number of failed attempts tolerated before
	// giving up.
	MaxRetries int
	// RetryDelay is the delay after the first failure; it doubles per
	// attempt.
	RetryDelay time.Duration
	// MaxRetryDelay caps the doubling.
	MaxRetryDelay time.Duration
}

// DefaultRetryConfig returns the retry schedule used when the caller
// does not override it: 1s, 2s, 4s, 8s, 16s, then give up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// retryDelay computes the backoff delay for the given 1-based attempt.
func retryDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// runWithRetry calls fn until it succeeds, the retry budget is spent,
// or ctx is cancelled.
func runWithRetry(ctx context.Context, logger *slog.Logger, name string, cfg RetryConfig, fn func() error) error {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		logger.Error("start failed", "target", name, "error", err)

		retries++
		if retries > cfg.MaxRetries {
			return fmt.Errorf("%s: max retries exceeded (%d attempts): %w", name, cfg.MaxRetries, err)
		}

		delay := retryDelay(retries, cfg)
		logger.Warn("retrying",
			"target", name,
			"attempt", retries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
