package retryer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DatabaseRetryConfig holds configuration for database transaction retries
type DatabaseRetryConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	BackoffFactor    float64       `yaml:"backoff_factor"`
	JitterPercentage float64       `yaml:"jitter_percentage"`
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() DatabaseRetryConfig {
	return DatabaseRetryConfig{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         time.Second,
		BackoffFactor:    2.0,
		JitterPercentage: 0.2,
	}
}

// IsTransientError reports whether err is a PostgreSQL error after which the
// server is known to have rolled the transaction back, so re-running it cannot
// apply a balance change twice. Connection failures are deliberately excluded:
// a connection lost during COMMIT leaves the outcome unknown.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01": // deadlock_detected
		return true
	}

	// insufficient_resources class: rejected before execution
	return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "53"
}

// WithRetry executes fn, retrying transient failures with backoff
func WithRetry(ctx context.Context, logger *zap.Logger, config DatabaseRetryConfig, operation string, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsTransientError(err) || attempt == config.MaxAttempts {
			if attempt > 1 {
				logger.Warn("Operation failed after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Error(err))
			}
			return fmt.Errorf("%s: %w", operation, err)
		}

		jitter := time.Duration(float64(delay) * config.JitterPercentage * (0.5 + (float64(attempt) / float64(config.MaxAttempts))))
		sleepTime := delay + jitter

		logger.Warn("Retrying database operation due to transient error",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", sleepTime),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", operation, ctx.Err())
		case <-time.After(sleepTime):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("%s: %w", operation, lastErr)
}
