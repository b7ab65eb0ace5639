package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	maxRetryAttempts = 3
	retryBaseDelay   = 100 * time.Millisecond
)

// withRetry runs fn up to maxRetryAttempts times with an increasing delay
// between attempts. Only transient store errors are retried; each attempt
// is a fresh, idempotent execution of the same statement.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetryAttempts {
			break
		}
		select {
		case <-time.After(retryBaseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("store unavailable after %d attempts: %w", maxRetryAttempts, lastErr)
}

// isTransient reports whether an error looks like a temporary
// connectivity or contention failure worth retrying.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"database is locked",
		"database table is locked",
		"busy",
		"connection refused",
		"connection reset",
		"broken pipe",
		"bad connection",
		"i/o timeout",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
