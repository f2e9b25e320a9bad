//go:build windows
// +build windows

package term

import "errors"

// ErrUnsupported is returned on platforms without Unix PTY semantics.
// The terminal contract (slave tty path, SIGWINCH delivery) has no
// equivalent under ConPTY.
var ErrUnsupported = errors.New("pty not supported on this platform")

// Start is not supported on Windows.
func Start(opts StartOptions) (*Process, error) {
	return nil, ErrUnsupported
}

// Resize is not supported on Windows.
func (p *Process) Resize(rows, cols uint16) error {
	return ErrUnsupported
}

// SignalWinch is not supported on Windows.
func (p *Process) SignalWinch() error {
	return ErrUnsupported
}
