// File: internal/services/chat/client.go
package chat

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes the room uses when it terminates a connection itself. Clients
// distinguish an eviction (same account logged in elsewhere) from a hard
// authentication failure by the code.
const (
	CloseInvalidToken   = 4003
	CloseDuplicateLogin = 4004
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client owns one WebSocket connection. All outbound traffic funnels through
// the buffered send channel and a single writePump goroutine, so frames for
// one connection always go out in the order they were submitted.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	addr     string
	username string

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an accepted connection. The caller starts WritePump and
// then drives the read side.
func NewClient(conn *websocket.Conn, addr, username string, sendBuffer int) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		addr:     addr,
		username: username,
	}
}

// Username returns the authenticated user this connection belongs to.
func (c *Client) Username() string {
	return c.username
}

// ReadMessage blocks for the next inbound frame.
func (c *Client) ReadMessage() ([]byte, error) {
	_, raw, err := c.conn.ReadMessage()
	return raw, err
}

// trySend queues a payload for delivery. It never blocks: a full buffer or a
// closed client drops the payload and reports false, which the router treats
// as an isolated per-connection failure.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// markClosed closes the send channel exactly once, which stops the write
// pump. Safe to call multiple times and from any goroutine.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// CloseWithCode sends a close frame with the given code and tears the
// connection down. Errors are swallowed: the registry's own state is the
// source of truth, not the transport's.
func (c *Client) CloseWithCode(code int, reason string) {
	c.markClosed()
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		log.Printf("[Client] Error sending close frame to %s: %v", c.addr, err)
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("[Client] Error closing connection to %s: %v", c.addr, err)
	}
}

// WritePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings. It exits when the send channel is closed or a
// write fails, closing the underlying connection either way.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("[Client] Error closing connection in write pump for %s: %v", c.addr, err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("[Client] Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				// Registry dropped us; tell the peer we are done.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("[Client] Write error for %s: %v", c.addr, err)
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SetupReadDeadlines arms the read deadline and pong handler before the read
// loop starts.
func (c *Client) SetupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[Client] Error setting read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// isExpectedCloseError reports whether an error is part of normal connection
// teardown rather than a fault worth logging.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
