// Package retry provides bounded retry with exponential backoff for
// fallible calls to remote services.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrExhausted wraps the final attempt's error once the attempt
	// budget is consumed without a success.
	ErrExhausted = errors.New("retry attempts exhausted")
)

const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 8 * time.Second

	// maxShift guards the exponential against int64 overflow
	maxShift = 62
)

// Policy controls how many times an operation is attempted and how long
// to wait between attempts. The zero value is normalised by Do: fewer
// than one attempt becomes one, zero delays become the package defaults.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Delay returns the backoff before retry number `attempt` (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay. The progression is
// non-decreasing for a fixed base.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	shift := attempt - 1
	if shift > maxShift {
		shift = maxShift
	}

	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	multiplier := int64(1) << shift
	if int64(base) > math.MaxInt64/multiplier {
		return maxDelay
	}

	delay := time.Duration(int64(base) * multiplier)
	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

func (p Policy) normalise() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// Do invokes op until it succeeds or the attempt budget is spent. The
// first success returns immediately; a failure sleeps the backoff for
// the current attempt and tries again. Retries are unconditional: any
// error consumes an attempt, transient or not. The one exception is the
// caller's context, which aborts the loop (and any pending backoff
// sleep) as soon as it is cancelled.
//
// On exhaustion the last error is returned wrapped with ErrExhausted so
// callers can distinguish "gave up" from a single failure.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T

	p = p.normalise()

	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry aborted: %w: last attempt: %w", ctx.Err(), lastErr)
		}

		if attempt == p.Attempts {
			break
		}

		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return zero, fmt.Errorf("retry aborted: %w: last attempt: %w", err, lastErr)
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, lastErr)
}

// sleep waits for the given duration unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
