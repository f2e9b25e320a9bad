//go:build !windows
// +build !windows

package term

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// readUntil drains PTY output until want appears, the PTY closes, or the
// timeout expires.
func readUntil(t *testing.T, p *Process, want string, timeout time.Duration) string {
	t.Helper()

	ch := make(chan []byte, 64)
	go func() {
		for {
			buf := make([]byte, 4096)
			n, err := p.Read(buf)
			if n > 0 {
				ch <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				close(ch)
				return
			}
		}
	}()

	deadline := time.After(timeout)
	var got []byte
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				if strings.Contains(string(got), want) {
					return string(got)
				}
				t.Fatalf("pty closed before %q appeared, got %q", want, got)
			}
			got = append(got, chunk...)
			if strings.Contains(string(got), want) {
				return string(got)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q, got %q", want, got)
		}
	}
}

func TestStartEchoAndWait(t *testing.T) {
	p, err := Start(StartOptions{Command: "echo terminal-check"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Kill()

	if p.PID() <= 0 {
		t.Errorf("expected positive pid, got %d", p.PID())
	}
	if !strings.HasPrefix(p.SlavePath(), "/dev/") {
		t.Errorf("unexpected slave path %q", p.SlavePath())
	}

	readUntil(t, p, "terminal-check", 5*time.Second)

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestStartAppliesEnvironment(t *testing.T) {
	p, err := Start(StartOptions{
		Command: `echo "$TERM:$LINES:$COLUMNS"; echo "tty=$SSH_TTY"`,
		Rows:    30,
		Cols:    90,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Kill()

	readUntil(t, p, "xterm-256color:30:90", 5*time.Second)
	readUntil(t, p, "tty="+p.SlavePath(), 5*time.Second)

	p.Wait()
}

func TestResizeReflectsOnDevice(t *testing.T) {
	p, err := Start(StartOptions{Command: "sleep 5", Rows: 24, Cols: 80})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		p.Kill()
		p.Wait()
	}()

	if err := p.Resize(40, 120); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	ws, err := unix.IoctlGetWinsize(int(p.master.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		t.Fatalf("read winsize: %v", err)
	}
	if ws.Row != 40 || ws.Col != 120 {
		t.Errorf("expected device size 40x120, got %dx%d", ws.Row, ws.Col)
	}
}

func TestWriteSyncRoundTrip(t *testing.T) {
	p, err := Start(StartOptions{Command: "cat"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		p.Kill()
		p.Wait()
	}()

	if err := p.WriteSync([]byte("ping\n")); err != nil {
		t.Fatalf("WriteSync failed: %v", err)
	}

	readUntil(t, p, "ping", 5*time.Second)
}

func TestKillIdempotent(t *testing.T) {
	p, err := Start(StartOptions{Command: "sleep 5"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := p.Kill(); err != nil {
		t.Errorf("first Kill failed: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill failed: %v", err)
	}

	// Reap the child.
	p.Wait()

	// Writes after kill fail without panicking.
	if err := p.WriteSync([]byte("x")); err == nil {
		t.Error("expected write error after kill")
	}
}
