// Package poller repeats a status check with exponential backoff until it
// reports completion, fails permanently, or runs out of time.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when MaxElapsed passes without completion.
var ErrTimeout = errors.New("poller: gave up waiting")

var errNotYet = errors.New("poller: not done")

// Config bounds a poll.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	// Retryable decides whether a check error is retried. Nil treats every
	// error as permanent.
	Retryable func(error) bool
	// OnAttempt, when set, is called before each wait.
	OnAttempt func(attempt int, wait time.Duration, err error)
}

// DefaultConfig polls for up to two minutes.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		MaxElapsed:      2 * time.Minute,
	}
}

// CheckFunc reports whether the awaited condition holds.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poll runs check until it returns done.
func Poll(ctx context.Context, cfg Config, check CheckFunc) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsed
	b.Reset()

	attempt := 0
	op := func() error {
		attempt++
		done, err := check(ctx)
		switch {
		case err != nil && (cfg.Retryable == nil || !cfg.Retryable(err)):
			return backoff.Permanent(err)
		case err != nil:
			return err
		case !done:
			return errNotYet
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt, wait, err)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if errors.Is(err, errNotYet) {
		return ErrTimeout
	}
	return err
}
