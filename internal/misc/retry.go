// Package misc holds small helpers shared by the cmds and stores:
// environment lookups and a generic retry loop.
package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the delay schedule used by store operations.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Retry runs op, retrying on errors accepted by isRetryable with the given
// delay schedule. The attempt budget is len(delays)+1. Context
// cancellation wins over the schedule.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
