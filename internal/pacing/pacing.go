// Package pacing provides the cancellable sleeps that drive the fixed-interval
// send loops.
package pacing

import (
	"context"
	"time"
)

// Wait waits for d. Returns false if the context is cancelled first.
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Repeat calls fn, then waits interval, and so on until fn fails, count
// calls have succeeded, or ctx is cancelled. A count <= 0 repeats forever.
// There is no wait after the final call.
//
// It returns the number of successful calls and the error from fn, if any.
// Cancellation is not an error; callers check ctx.Err().
func Repeat(ctx context.Context, count int, interval time.Duration, fn func(i int) error) (int, error) {
	done := 0
	for count <= 0 || done < count {
		if ctx.Err() != nil {
			return done, nil
		}
		if err := fn(done); err != nil {
			return done, err
		}
		done++
		if count > 0 && done == count {
			break
		}
		if !Wait(ctx, interval) {
			return done, nil
		}
	}
	return done, nil
}
