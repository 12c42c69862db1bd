package timectrl

import (
	"context"
	"time"
)

// StepFunc performs one unit of work and returns how long to wait before
// the next one.
type StepFunc func(ctx context.Context) (time.Duration, error)

// Run executes step repeatedly on the calling goroutine, sleeping on clock
// between steps. One step always completes before the next begins. Run
// returns the first step error, or ctx.Err() once ctx is done.
func Run(ctx context.Context, clock Clock, step StepFunc) error {
	if clock == nil {
		clock = RealClock{}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, err := step(ctx)
		if err != nil {
			return err
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
