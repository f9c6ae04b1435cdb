package util

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries = 3
	baseDelay  = 100 * time.Millisecond
)

// IsLockError reports whether err is SQLite refusing a write because another
// connection holds the lock.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}

// RetryOnLock retries the given function if it fails with a database lock error
func RetryOnLock(ctx context.Context, operation func() error) error {
	_, err := RetryOnLockWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// RetryOnLockWithResult retries the given function if it fails with a database lock error
// and returns the result along with any error
func RetryOnLockWithResult[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	var result T
	var err error

	for i := 0; i < maxRetries; i++ {
		result, err = operation()
		if !IsLockError(err) {
			return result, err
		}

		// Exponential backoff: 100ms, 200ms, 400ms
		delay := baseDelay * time.Duration(1<<i)
		log.Warn().Dur("delay", delay).Int("attempt", i+1).Msg("Database locked, retrying")
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	// If we've exhausted all retries, return the last result and error
	return result, err
}
