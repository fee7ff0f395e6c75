package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff configures Retry.
type Backoff struct {
	Attempts int           // total calls; below 1 means a single call
	Delay    time.Duration // wait after the first failure, doubled each time
	MaxDelay time.Duration // cap on a single wait; 0 keeps the library default
}

// Permanent marks err as not worth another attempt.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry calls fn until it succeeds, returns a Permanent error, runs out of
// attempts or ctx is done. It returns the last error from fn, or the
// context's error if ctx ended first.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Delay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	if b.MaxDelay > 0 {
		exp.MaxInterval = b.MaxDelay
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(uint(max(b.Attempts, 1))))
	return err
}
