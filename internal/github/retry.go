package github

import (
	"context"
	"errors"
	"log"
	"time"
)

const (
	// Default initial delay for caller-side retries
	defaultInitialDelay = 500 * time.Millisecond
)

// sleepFunc is swapped in tests to avoid real delays.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryWithBackoff runs fn up to maxRetries+1 times with exponential backoff.
// Only network failures are retried. The API client never calls this; it is
// offered to callers that opt into a retry policy.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	return retryWithBackoffCustom(ctx, maxRetries, defaultInitialDelay, fn)
}

func retryWithBackoffCustom(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Sleep before retry (skip on first attempt)
		if attempt > 0 {
			log.Printf("[Retry] Attempt %d/%d after %v delay", attempt+1, maxRetries+1, delay)
			if err := sleepFunc(ctx, delay); err != nil {
				return lastErr
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				log.Printf("[Retry] Succeeded on attempt %d/%d", attempt+1, maxRetries+1)
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			log.Printf("[Retry] Retryable error on attempt %d/%d: %v", attempt+1, maxRetries+1, lastErr)
		}
	}

	if maxRetries > 0 {
		log.Printf("[Retry] All %d attempts failed, giving up", maxRetries+1)
	}
	return lastErr
}

// IsRetryable reports whether err is a transient network failure.
func IsRetryable(err error) bool {
	return err != nil && errors.Is(err, ErrNetwork)
}
