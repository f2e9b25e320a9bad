// Package ws adapts WebSocket connections to the session's subscriber
// stream contract: binary frames out, text or binary frames in.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shared-terminal/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Outbound frames queued per connection before the peer is considered
	// dead. Terminal output chunks are small, so this absorbs bursts.
	sendQueueSize = 256
)

// Conn is one subscriber stream over a WebSocket connection. Outbound
// frames go through a buffered queue drained by a dedicated writer
// goroutine, so a slow peer never blocks the broadcaster; a full queue
// closes this connection only.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded WebSocket connection and starts its writer.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	return c
}

// Send queues data for delivery as one binary frame. It never blocks: a
// full queue means the peer stopped draining, and the connection is closed.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ErrSubscriberClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.closeLocked()
		return model.ErrSubscriberClosed
	}
}

// Receive blocks for the next frame from the peer. Text frames are
// returned as their UTF-8 bytes, binary frames as-is. A read error closes
// the connection.
func (c *Conn) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.Close()
		return nil, err
	}
	return data, nil
}

// IsClosed reports whether the connection is closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump is the sole writer on the underlying connection. It drains the
// send queue into binary frames and keeps the peer alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Closed on our side; tell the peer before hanging up.
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
