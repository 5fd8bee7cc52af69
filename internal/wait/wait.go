// Package wait holds the readiness primitives shared by the processor and the workflow adapters.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTimeout = errors.New("condition not met before timeout")

// Condition reports whether the awaited state has been reached.
type Condition func(ctx context.Context) (bool, error)

// Until polls cond every interval until it returns true, returns an error, or timeout elapses.
// The condition is checked once immediately.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ok, err := cond(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
