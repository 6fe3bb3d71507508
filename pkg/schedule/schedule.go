// Package schedule runs periodic background tasks.
package schedule

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/atomic"
)

// Task is a handle to a running periodic task.
type Task struct {
	name     string
	interval time.Duration

	ticks *atomic.Uint64
}

// Start runs f every interval in a new goroutine until ctx is cancelled.
//
// Each tick is delayed by up to 10% of the interval to avoid tasks on
// different nodes synchronising. f is never called concurrently with itself.
func Start(ctx context.Context, name string, interval time.Duration, f func()) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		ticks:    atomic.NewUint64(0),
	}
	go t.run(ctx, f)
	return t
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Interval returns the configured interval between ticks.
func (t *Task) Interval() time.Duration {
	return t.interval
}

// Ticks returns the number of completed ticks.
func (t *Task) Ticks() uint64 {
	return t.ticks.Load()
}

func (t *Task) run(ctx context.Context, f func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if jitter := t.jitter(); jitter > 0 {
				select {
				case <-time.After(jitter):
				case <-ctx.Done():
					return
				}
			}

			f()
			t.ticks.Inc()

		case <-ctx.Done():
			return
		}
	}
}

func (t *Task) jitter() time.Duration {
	limit := int64(t.interval / 10)
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(limit))
}
