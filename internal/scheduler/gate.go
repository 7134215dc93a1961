package scheduler

import (
	"context"
	"time"

	"github.com/example/boya-scheduler/internal/clock"
	"github.com/example/boya-scheduler/internal/errs"
)

// Margin is added on top of the rounded wait so that coarse timers still
// resume at or after the target.
const Margin = time.Second

// SleepFor converts the remaining time until a target into the duration to
// actually sleep: zero when the target has passed, otherwise delta rounded up
// to the next whole second plus Margin.
func SleepFor(delta time.Duration) time.Duration {
	if delta <= 0 {
		return 0
	}
	secs := (delta + time.Second - 1) / time.Second
	return secs*time.Second + Margin
}

// WaitUntil suspends until target according to c and returns how long it
// slept. A target in the past returns immediately with zero. Cancelling ctx
// aborts the wait with an error marked errs.ErrInterrupted.
func WaitUntil(ctx context.Context, target time.Time, c clock.Clock) (time.Duration, error) {
	d := SleepFor(target.Sub(c.Now()))
	if d == 0 {
		return 0, nil
	}
	if err := c.Sleep(ctx, d); err != nil {
		return 0, errs.Mark(errs.Wrap(err, "wait for selection window"), errs.ErrInterrupted)
	}
	return d, nil
}
