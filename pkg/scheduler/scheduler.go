package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Start runs job immediately and then every interval until ctx is done. A
// run that is still going when a tick fires delays the next run; ticks are
// not queued. The first failed run stops the scheduler and its error is
// returned.
func Start(ctx context.Context, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	run := 1
	if err := runOnce(ctx, job, run); err != nil {
		return err
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			run++
			if err := runOnce(ctx, job, run); err != nil {
				return err
			}
		}
	}
}

func runOnce(ctx context.Context, job Job, run int) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := job(ctx); err != nil {
		return fmt.Errorf("run %d failed: %w", run, err)
	}
	return nil
}
