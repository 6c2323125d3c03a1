// Package retry wraps outbound network calls in a retry-with-exponential-backoff
// loop. Every call the service makes to TikTok or Discord goes through Do, so
// backoff behavior is configured in one place instead of per call site.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Default configuration values
const (
	// DefaultMaxRetries defines the default number of attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultBaseDelay defines the default backoff duration before the first retry
	DefaultBaseDelay = 1 * time.Second
)

// Backoff bounds keep a misconfigured base delay from hammering the remote
// API or stalling a run for minutes.
const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Config holds the retry parameters shared by all outbound calls.
type Config struct {
	// MaxRetries is the total number of attempts, including the first one
	MaxRetries int

	// BaseDelay is the delay before the first retry; it doubles on each
	// subsequent attempt
	BaseDelay time.Duration
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", c.BaseDelay)
	}
	return nil
}

// Do invokes fn up to cfg.MaxRetries times, sleeping with exponential backoff
// between attempts. It returns nil as soon as fn succeeds, the context error
// if ctx is canceled while waiting, and the last error from fn once all
// attempts are exhausted.
func Do(ctx context.Context, cfg Config, log *logrus.Entry, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, cfg.BaseDelay)
		log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   lastErr,
		}).Warn("Call failed, scheduling retry")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxRetries, lastErr)
}

// calculateBackoff determines the retry delay duration using exponential backoff.
// It ensures the backoff duration stays within defined minimum and maximum bounds.
func calculateBackoff(attempt int, baseDelay time.Duration) time.Duration {
	backoff := baseDelay * time.Duration(1<<(attempt-1))

	if backoff < minBackoff {
		return minBackoff
	}
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}
