package assistant

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const backoffMultiplier = 2

// retry runs op up to attempts times with exponential backoff starting at
// base. Errors wrapped with backoff.Permanent end the loop immediately.
func retry[T any](ctx context.Context, attempts int, base time.Duration, notify func(error, time.Duration), op func() (T, error)) (T, error) {
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = 0

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, op, opts...)
}
