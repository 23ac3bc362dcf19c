package app

import (
	"context"
	"time"

	"storefront-ledger/internal/core"

	"go.uber.org/zap"
)

// retryBackoff is the wait before attempt n+1; it grows linearly.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 50 * time.Millisecond
}

// withRetry runs fn up to attempts times while it fails with a retryable
// error. Every attempt is a fresh transaction, so nothing from a failed
// attempt is visible to the next one.
func withRetry(ctx context.Context, attempts int, backoff func(int) time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !core.IsRetryable(err) || attempt >= attempts {
			return err
		}
		logger.Warn("retrying after transient failure", zap.Int("attempt", attempt), zap.Error(err))

		t := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
