package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often a gateway operation is attempted. The delay grows
// by Multiplier after every failed attempt and is never jittered, so a given
// configuration produces the same schedule on every run.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultPolicy mirrors the gateway defaults: three attempts, two seconds
// before the second, doubling afterwards.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: 2 * time.Second, Multiplier: 2}
}

// ExhaustedError reports that every attempt allowed by the policy failed. It
// wraps the last attempt's error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Do stops immediately and
// returns the original error unchanged. The operation decides what is
// permanent, not the policy.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn under the policy and returns its value. fn is attempted at most
// p.MaxAttempts times; each failure logs one line with the delay before the
// next attempt. Context cancellation interrupts the wait between attempts.
func Do[T any](ctx context.Context, log *slog.Logger, p Policy, op string, fn func() (T, error)) (T, error) {
	return do(ctx, log, p, op, fn, nil)
}

func do[T any](ctx context.Context, log *slog.Logger, p Policy, op string, fn func() (T, error), timer backoff.Timer) (T, error) {
	var (
		value     T
		attempt   int
		permanent bool
	)

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	wrapped := func() error {
		attempt++
		v, err := fn()
		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				permanent = true
			}
			return err
		}
		value = v
		return nil
	}

	notify := func(err error, delay time.Duration) {
		log.Warn("operation failed, will retry",
			"op", op, "attempt", attempt, "max_attempts", attempts, "delay", delay, "error", err)
	}

	budget := backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(attempts-1))
	err := backoff.RetryNotifyWithTimer(wrapped, budget, notify, timer)
	switch {
	case err == nil:
		return value, nil
	case permanent:
		return value, err
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return value, err
	default:
		return value, &ExhaustedError{Op: op, Attempts: attempt, Err: err}
	}
}
