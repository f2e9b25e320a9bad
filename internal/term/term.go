// Package term owns the PTY pair and the shell process attached to it.
package term

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
)

// StartOptions contains options for starting the terminal process.
type StartOptions struct {
	// Command is the shell-interpreted command line to run.
	Command string

	// Dir is the working directory for the process.
	// If empty, the current directory is inherited.
	Dir string

	// Rows and Cols set the initial PTY window size.
	// Zero values fall back to 24x80.
	Rows uint16
	Cols uint16
}

// Process is a running terminal process bound to a PTY pair. The slave end
// is closed in the parent right after spawn, so master reads fail once the
// child exits.
type Process struct {
	master    *os.File
	slavePath string
	cmd       *exec.Cmd
	pid       int

	mu     sync.Mutex
	closed bool
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.pid
}

// SlavePath returns the path of the slave tty device.
func (p *Process) SlavePath() string {
	return p.slavePath
}

// Read reads output from the PTY master. It blocks until output is
// available, the process exits, or the master is closed.
func (p *Process) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

// WriteSync writes data to the PTY master and syncs the write through.
// Character devices commonly reject fsync with EINVAL; that is not an error.
func (p *Process) WriteSync(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return os.ErrClosed
	}
	master := p.master
	p.mu.Unlock()

	if _, err := master.Write(data); err != nil {
		return fmt.Errorf("write pty: %w", err)
	}
	if err := master.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("sync pty: %w", err)
	}
	return nil
}

// Wait blocks until the process exits and returns the exit code.
// Returns -1 for a process killed by a signal.
func (p *Process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Kill terminates the process if it is still alive and closes the master
// handle. Idempotent: repeated calls return nil.
func (p *Process) Kill() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			firstErr = err
		}
	}
	if err := p.master.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// buildEnv copies the parent environment and appends the terminal overrides.
// os/exec keeps the last value for duplicate keys, so appending overrides.
func buildEnv(slavePath string, rows, cols uint16) []string {
	env := os.Environ()

	home := os.Getenv("HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	env = append(env,
		"TERM=xterm-256color",
		"PWD="+home,
		"SSH_TTY="+slavePath,
		"LINES="+strconv.Itoa(int(rows)),
		"COLUMNS="+strconv.Itoa(int(cols)),
	)
	return env
}
