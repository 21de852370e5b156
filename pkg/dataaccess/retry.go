package dataaccess

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/pkg/dataaccess/monitoring"
	"github.com/wardenhq/warden/pkg/logging"
)

const (
	// retryAttempts is the maximum number of attempts per store operation.
	retryAttempts = 3

	// retryInitialBackoff is the sleep before the second attempt; it
	// doubles for each attempt after that (500ms, 1s, 2s).
	retryInitialBackoff = 500 * time.Millisecond

	// opTimeout bounds a single attempt against the store.
	opTimeout = 5 * time.Second
)

// withRetry runs fn with a bounded retry loop. Each attempt gets its own
// timeout; transient failures are retried with doubling backoff; permanent
// outcomes (not-found, duplicate key, cancelled context) are returned
// immediately. If every attempt fails the last error propagates.
func withRetry[T any](ctx context.Context, l *slog.Logger, dal, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	backoff := retryInitialBackoff
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opTimeout)
		result, err = fn(attemptCtx)
		cancel()

		if err == nil || isPermanent(err) {
			return result, err
		}

		if attempt == retryAttempts {
			break
		}

		monitoring.MongoRetries.WithLabelValues(dal, op).Inc()
		l.Warn("Store operation failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String(logging.KeyError, err.Error()),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return result, ctx.Err()
		}
		backoff *= 2
	}

	return result, err
}
