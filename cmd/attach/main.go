// Command attach connects the local terminal to a running terminal
// bridge: stdin is relayed to the session, session output to stdout, and
// local window size changes are propagated to the remote PTY.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

// detachKey is Ctrl-], the escape that ends the local relay.
const detachKey = 0x1d

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "host:port of the terminal bridge")
	useTLS := flag.Bool("tls", false, "use wss:// and https:// instead of ws:// and http://")
	flag.Parse()

	if err := run(*addr, *useTLS); err != nil {
		fmt.Fprintf(os.Stderr, "attach: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, useTLS bool) error {
	wsScheme, httpScheme := "ws", "http"
	if useTLS {
		wsScheme, httpScheme = "wss", "https"
	}

	attachURL := url.URL{Scheme: wsScheme, Host: addr, Path: "/api/terminal/attach"}
	resizeURL := url.URL{Scheme: httpScheme, Host: addr, Path: "/api/terminal/resize"}

	conn, _, err := websocket.DefaultDialer.Dial(attachURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", attachURL.String(), err)
	}
	defer conn.Close()

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return fmt.Errorf("stdin is not a terminal")
	}

	oldState, err := term.MakeRaw(stdin)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(stdin, oldState)

	// Push the local window size now and on every SIGWINCH.
	sendResize(resizeURL.String(), stdin)
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			sendResize(resizeURL.String(), stdin)
		}
	}()
	defer signal.Stop(winch)

	errCh := make(chan error, 2)

	// Session output to the local terminal.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			if _, err := os.Stdout.Write(data); err != nil {
				errCh <- err
				return
			}
		}
	}()

	// Local keystrokes to the session, until the detach key.
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			if i := bytes.IndexByte(buf[:n], detachKey); i >= 0 {
				if i > 0 {
					conn.WriteMessage(websocket.BinaryMessage, buf[:i])
				}
				errCh <- nil
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				errCh <- err
				return
			}
		}
	}()

	err = <-errCh
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return err
	}
	return nil
}

// sendResize posts the current local window size to the bridge.
// Best-effort: a failure leaves the remote size unchanged.
func sendResize(resizeURL string, fd int) {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return
	}

	body, err := json.Marshal(map[string]uint16{
		"rows": uint16(rows),
		"cols": uint16(cols),
	})
	if err != nil {
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(resizeURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}
