package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsPeriodically(t *testing.T) {
	var runs atomic.Int64

	task := Every(context.Background(), 10*time.Millisecond, func(now time.Time) {
		runs.Add(1)
	})
	defer task.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestStopHaltsTask(t *testing.T) {
	var runs atomic.Int64

	task := Every(context.Background(), 5*time.Millisecond, func(now time.Time) {
		runs.Add(1)
	})

	time.Sleep(25 * time.Millisecond)
	task.Stop()

	after := runs.Load()
	time.Sleep(25 * time.Millisecond)

	if runs.Load() != after {
		t.Errorf("task ran %d more times after Stop", runs.Load()-after)
	}
}

func TestParentCancellationHaltsTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int64
	task := Every(ctx, 5*time.Millisecond, func(now time.Time) {
		runs.Add(1)
	})

	cancel()

	// Stop still returns promptly after the parent ended
	done := make(chan struct{})
	go func() {
		task.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop hung after parent cancellation")
	}
}
