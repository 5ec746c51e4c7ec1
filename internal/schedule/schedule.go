// Package schedule provides cancellable periodic tasks, used for the
// login timeout sweep and the worker's cookie polling instead of raw
// timer callbacks.
package schedule

import (
	"context"
	"time"
)

// Task is a handle to a running periodic task
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the task and waits for its final tick to finish
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Every runs fn on a fixed period until the task is stopped or the
// parent context ends. The first run happens after one period, not
// immediately.
func Every(parent context.Context, period time.Duration, fn func(now time.Time)) *Task {
	ctx, cancel := context.WithCancel(parent)
	task := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()

	return task
}
