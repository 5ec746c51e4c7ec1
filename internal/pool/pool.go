package pool

import (
	"fmt"
	"log/slog"
	"sync"
)

// ProcessPool manages a fixed set of browser processes that login
// contexts are spread across
type ProcessPool struct {
	processes    []*ManagedProcess
	chromiumPath string
	maxProcesses int
	mu           sync.RWMutex
}

// PoolMetrics contains metrics about the entire pool
type PoolMetrics struct {
	TotalProcesses int              `json:"total_processes"`
	TotalSessions  int64            `json:"total_sessions"`
	Processes      []ProcessMetrics `json:"processes"`
}

// NewProcessPool starts poolSize browser processes
func NewProcessPool(chromiumPath string, poolSize int) (*ProcessPool, error) {
	if poolSize < 1 || poolSize > 10 {
		return nil, fmt.Errorf("pool size must be between 1 and 10, got %d", poolSize)
	}

	pool := &ProcessPool{
		processes:    make([]*ManagedProcess, 0, poolSize),
		chromiumPath: chromiumPath,
		maxProcesses: poolSize,
	}

	for i := 0; i < poolSize; i++ {
		process, err := NewManagedProcess(chromiumPath)
		if err != nil {
			// Stop everything started so far before bailing out
			slog.Error("failed to start process, cleaning up", "index", i, "error", err)
			pool.Shutdown()
			return nil, fmt.Errorf("failed to start process %d: %w", i, err)
		}
		pool.processes = append(pool.processes, process)
		slog.Info("started browser process", "index", i, "port", process.GetPort())
	}

	slog.Info("process pool initialized", "size", poolSize)
	return pool, nil
}

// GetProcesses returns a copy of all processes (for monitoring)
func (p *ProcessPool) GetProcesses() []*ManagedProcess {
	p.mu.RLock()
	defer p.mu.RUnlock()

	processes := make([]*ManagedProcess, len(p.processes))
	copy(processes, p.processes)
	return processes
}

// GetProcessCount returns the number of processes in the pool
func (p *ProcessPool) GetProcessCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.processes)
}

// Shutdown stops all processes in the pool, best effort
func (p *ProcessPool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var failures int
	for i, process := range p.processes {
		if err := process.Stop(); err != nil {
			slog.Warn("failed to stop process", "index", i, "port", process.GetPort(), "error", err)
			failures++
		} else {
			slog.Info("process stopped", "index", i, "port", process.GetPort())
		}
	}

	p.processes = p.processes[:0]

	if failures > 0 {
		return fmt.Errorf("failed to stop %d processes", failures)
	}

	slog.Info("all processes shut down")
	return nil
}

// GetMetrics returns metrics for the entire pool
func (p *ProcessPool) GetMetrics() PoolMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var totalSessions int64
	processMetrics := make([]ProcessMetrics, len(p.processes))

	for i, process := range p.processes {
		metrics := process.GetMetrics()
		processMetrics[i] = metrics
		totalSessions += metrics.SessionCount
	}

	return PoolMetrics{
		TotalProcesses: len(p.processes),
		TotalSessions:  totalSessions,
		Processes:      processMetrics,
	}
}
