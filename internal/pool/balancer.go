package pool

import (
	"fmt"
	"log/slog"
)

// LoadBalancer picks the browser process a new login context lands on
type LoadBalancer struct {
	pool *ProcessPool
}

// NewLoadBalancer creates a balancer over the pool
func NewLoadBalancer(pool *ProcessPool) *LoadBalancer {
	return &LoadBalancer{
		pool: pool,
	}
}

// SelectProcess returns the healthy process with the fewest login
// contexts
func (lb *LoadBalancer) SelectProcess() (*ManagedProcess, error) {
	processes := lb.pool.GetProcesses()

	if len(processes) == 0 {
		return nil, fmt.Errorf("no processes in the pool")
	}

	var selected *ManagedProcess
	var minSessions int64 = -1

	for _, process := range processes {
		if !process.IsHealthy() {
			slog.Warn("skipping unhealthy process", "port", process.GetPort())
			continue
		}

		sessionCount := process.GetSessionCount()
		if minSessions == -1 || sessionCount < minSessions {
			minSessions = sessionCount
			selected = process
		}
	}

	if selected == nil {
		return nil, fmt.Errorf("no healthy processes in the pool")
	}

	slog.Debug("selected process",
		"port", selected.GetPort(),
		"current_sessions", selected.GetSessionCount())

	return selected, nil
}

// GetMetrics exposes the pool's metrics through the balancer
func (lb *LoadBalancer) GetMetrics() PoolMetrics {
	return lb.pool.GetMetrics()
}
