package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

type ProcessStatus string

const (
	StatusStarting ProcessStatus = "starting"
	StatusRunning  ProcessStatus = "running"
	StatusStopped  ProcessStatus = "stopped"
	StatusFailed   ProcessStatus = "failed"
)

// Process is one headless chromium instance. Login contexts are
// created inside it over CDP; the process itself only knows its
// binary, debug port and profile directory.
type Process struct {
	BinaryPath  string
	DebugPort   int
	UserDataDir string
	Cmd         *exec.Cmd
	StartedAt   time.Time
	Status      ProcessStatus
}

// NewProcess allocates a free debug port and a temp profile directory
// for a new browser process
func NewProcess(binaryPath string) (*Process, error) {
	debugPort, err := GetFreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to get free port: %w", err)
	}

	debugPortInt, err := strconv.Atoi(debugPort)
	if err != nil {
		ReturnPort(debugPort)
		return nil, fmt.Errorf("failed to convert port to int: %w", err)
	}

	userDataDir, err := os.MkdirTemp("", "chromium-*")
	if err != nil {
		ReturnPort(debugPort)
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &Process{
		BinaryPath:  binaryPath,
		DebugPort:   debugPortInt,
		UserDataDir: userDataDir,
		Status:      StatusStarting,
	}, nil
}

// buildFlags constructs the chromium command line
func (p *Process) buildFlags() []string {
	return []string{
		"--headless=new",
		fmt.Sprintf("--remote-debugging-port=%d", p.DebugPort),
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		fmt.Sprintf("--user-data-dir=%s", p.UserDataDir),
	}
}

// Start launches the browser process
func (p *Process) Start() error {
	p.Cmd = exec.Command(p.BinaryPath, p.buildFlags()...)

	if err := p.Cmd.Start(); err != nil {
		p.Status = StatusFailed
		return fmt.Errorf("failed to start browser process: %w", err)
	}

	p.Status = StatusRunning
	p.StartedAt = time.Now()

	return nil
}

// Stop terminates the browser process, falling back to SIGKILL if it
// ignores SIGTERM, and cleans up its profile directory and port
func (p *Process) Stop() error {
	if p.Cmd == nil || p.Cmd.Process == nil {
		return fmt.Errorf("process was never started")
	}

	if err := p.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send termination signal: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && err.Error() != "signal: terminated" {
			return fmt.Errorf("process exit error: %w", err)
		}
	case <-time.After(5 * time.Second):
		if err := p.Cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to force kill process: %w", err)
		}
	}

	if err := os.RemoveAll(p.UserDataDir); err != nil {
		return fmt.Errorf("failed to remove user data directory: %w", err)
	}

	p.Status = StatusStopped
	ReturnPort(strconv.Itoa(p.DebugPort))

	return nil
}

// IsAlive checks if the process is still running without affecting it
func (p *Process) IsAlive() bool {
	if p.Cmd == nil || p.Cmd.Process == nil {
		return false
	}

	err := p.Cmd.Process.Signal(syscall.Signal(0))
	return err == nil
}

// GetPID returns the process ID if the process is running
func (p *Process) GetPID() int {
	if p.Cmd != nil && p.Cmd.Process != nil {
		return p.Cmd.Process.Pid
	}
	return 0
}

// GetDebugURL returns the DevTools Protocol base URL
func (p *Process) GetDebugURL() string {
	return fmt.Sprintf("http://localhost:%d", p.DebugPort)
}
