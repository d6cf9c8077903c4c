// Package deadline races an asynchronous operation against a timer so a
// call that never settles surfaces as a distinct timeout failure rather
// than an indefinite hang.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadlineExceeded is the sentinel matched by errors.Is for any
// timeout produced by this package.
var ErrDeadlineExceeded = errors.New("operation deadline exceeded")

// DefaultLimit is the fallback deadline applied when a caller passes a
// non-positive limit.
const DefaultLimit = 15 * time.Second

// Error reports which operation timed out and the limit it was given.
type Error struct {
	Label string
	Limit time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Label, e.Limit)
}

// Is lets errors.Is match both the package sentinel and the stdlib
// context.DeadlineExceeded.
func (e *Error) Is(target error) bool {
	return target == ErrDeadlineExceeded || target == context.DeadlineExceeded
}

type outcome[T any] struct {
	value T
	err   error
}

// Run executes op with a fresh deadline of `limit`. If op settles first
// its outcome is returned as-is. If the timer fires first, Run returns
// an *Error and stops waiting.
//
// The child context handed to op is cancelled on timeout, so operations
// that honour their context stop promptly. Operations that ignore it
// keep running out-of-band in their goroutine and their eventual result
// is discarded; side effects of such abandoned calls (duplicate writes,
// held handles) are the caller's concern.
func Run[T any](ctx context.Context, limit time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if limit <= 0 {
		limit = DefaultLimit
	}

	opCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	// Buffered so the abandoned goroutine can always complete its send.
	done := make(chan outcome[T], 1)

	go func() {
		value, err := op(opCtx)
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case result := <-done:
		return result.value, result.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			// Parent cancelled; not a timeout.
			return zero, ctx.Err()
		}
		return zero, &Error{Label: label, Limit: limit}
	}
}
