package utils

import (
	"context"
	"time"
)

// Retry invokes fn up to attempts times, sleeping delay between
// failures.  It returns nil as soon as fn succeeds, the last error
// once attempts are exhausted, or the context error if the context is
// cancelled while waiting.  The delay is fixed and short by intent:
// the only caller on the request path is the account-linking resolver,
// which must never stall a webhook past the platform's delivery
// timeout.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
