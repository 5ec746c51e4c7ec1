package pool

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evanmtz/streampost/internal/browser"
	"github.com/evanmtz/streampost/internal/cdp"
)

// How long to wait for a freshly started browser to expose its debug
// endpoint
const (
	startupTimeout = 15 * time.Second
	startupPoll    = 500 * time.Millisecond
)

// ManagedProcess pairs a browser process with its session count and
// a shared CDP client. All login contexts on one process multiplex
// over the same browser-level connection.
type ManagedProcess struct {
	process      *browser.Process
	sessionCount atomic.Int64

	clientMu sync.Mutex
	client   *cdp.Client
}

// NewManagedProcess starts a browser and waits until its debug
// endpoint answers
func NewManagedProcess(chromiumPath string) (*ManagedProcess, error) {
	process, err := browser.NewProcess(chromiumPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser process: %w", err)
	}

	if err := process.Start(); err != nil {
		return nil, fmt.Errorf("failed to start browser process: %w", err)
	}

	mp := &ManagedProcess{process: process}

	if err := mp.waitReady(); err != nil {
		process.Stop()
		return nil, err
	}

	return mp, nil
}

// waitReady polls the debug endpoint until the browser answers or the
// startup window runs out
func (mp *ManagedProcess) waitReady() error {
	deadline := time.Now().Add(startupTimeout)
	port := strconv.Itoa(mp.process.DebugPort)

	for time.Now().Before(deadline) {
		if _, err := cdp.GetWebSocketURL("localhost", port); err == nil {
			return nil
		}
		time.Sleep(startupPoll)
	}

	return fmt.Errorf("browser on port %s not ready after %s", port, startupTimeout)
}

// GetClient returns the shared CDP client for this process, dialing
// it on first use
func (mp *ManagedProcess) GetClient() (*cdp.Client, error) {
	mp.clientMu.Lock()
	defer mp.clientMu.Unlock()

	if mp.client != nil {
		return mp.client, nil
	}

	wsURL, err := cdp.GetWebSocketURL("localhost", strconv.Itoa(mp.process.DebugPort))
	if err != nil {
		return nil, fmt.Errorf("failed to discover WebSocket URL: %w", err)
	}

	client := cdp.NewClient(wsURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect CDP client: %w", err)
	}

	mp.client = client
	return client, nil
}

// GetPort returns the process's debug port
func (mp *ManagedProcess) GetPort() int {
	return mp.process.DebugPort
}

// IsHealthy reports whether the underlying process is still alive
func (mp *ManagedProcess) IsHealthy() bool {
	return mp.process.IsAlive()
}

// GetSessionCount returns the number of login contexts currently
// assigned to this process
func (mp *ManagedProcess) GetSessionCount() int64 {
	return mp.sessionCount.Load()
}

// IncrementSessionCount records a new context on this process
func (mp *ManagedProcess) IncrementSessionCount() {
	mp.sessionCount.Add(1)
}

// DecrementSessionCount records a released context
func (mp *ManagedProcess) DecrementSessionCount() {
	mp.sessionCount.Add(-1)
}

// ProcessMetrics is a monitoring snapshot of one process
type ProcessMetrics struct {
	Port          int   `json:"port"`
	PID           int   `json:"pid"`
	SessionCount  int64 `json:"session_count"`
	Healthy       bool  `json:"healthy"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// GetMetrics returns a snapshot of this process
func (mp *ManagedProcess) GetMetrics() ProcessMetrics {
	return ProcessMetrics{
		Port:          mp.process.DebugPort,
		PID:           mp.process.GetPID(),
		SessionCount:  mp.sessionCount.Load(),
		Healthy:       mp.IsHealthy(),
		UptimeSeconds: int64(time.Since(mp.process.StartedAt).Seconds()),
	}
}

// Stop closes the CDP client and terminates the browser
func (mp *ManagedProcess) Stop() error {
	mp.clientMu.Lock()
	if mp.client != nil {
		mp.client.Close()
		mp.client = nil
	}
	mp.clientMu.Unlock()

	return mp.process.Stop()
}
