//go:build !windows
// +build !windows

package term

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Start allocates a PTY pair, applies the initial window size, and spawns
// the command line shell-interpreted with stdin/stdout/stderr bound to the
// slave. The child becomes a session leader with the slave as controlling
// terminal. PTY allocation and spawn failures are fatal and not retried.
func Start(opts StartOptions) (*Process, error) {
	if opts.Command == "" {
		return nil, errors.New("command line is empty")
	}

	rows, cols := opts.Rows, opts.Cols
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set initial window size: %w", err)
	}

	cmd := exec.Command("/bin/sh", "-c", opts.Command)
	cmd.Env = buildEnv(slave.Name(), rows, cols)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}

	slavePath := slave.Name()

	// The child holds its own slave descriptor now.
	slave.Close()

	return &Process{
		master:    master,
		slavePath: slavePath,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
	}, nil
}

// Resize applies the new window size to the PTY device.
func (p *Process) Resize(rows, cols uint16) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return os.ErrClosed
	}
	master := p.master
	p.mu.Unlock()

	ws := &unix.Winsize{
		Row: rows,
		Col: cols,
	}
	return unix.IoctlSetWinsize(int(master.Fd()), unix.TIOCSWINSZ, ws)
}

// SignalWinch delivers SIGWINCH to the process.
func (p *Process) SignalWinch() error {
	if p.cmd.Process == nil {
		return os.ErrProcessDone
	}
	return p.cmd.Process.Signal(syscall.SIGWINCH)
}
