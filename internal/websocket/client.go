package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/text/language"
)

const (
	sendBufferSize = 256
	writeTimeout   = 10 * time.Second
)

// Client is one live WebSocket connection. It is the session.Sink the chat
// service broadcasts to.
type Client struct {
	ID   string
	Lang language.Tag

	conn   *websocket.Conn
	logger *slog.Logger

	mu   sync.RWMutex
	send chan []byte
}

func newClient(id string, conn *websocket.Conn, lang language.Tag, logger *slog.Logger) *Client {
	return &Client{
		ID:     id,
		Lang:   lang,
		conn:   conn,
		logger: logger.With("conn_id", id),
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues frame without blocking. It reports false when the client is
// closed or its buffer is full; the frame is dropped in both cases.
func (c *Client) Send(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn("client send buffer full, dropping frame")
		return false
	}
}

// close stops the write pump. Later sends are dropped.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// outbound returns the channel the write pump drains.
func (c *Client) outbound() <-chan []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send
}

// writePump writes queued frames until the client is closed or a write fails.
func (c *Client) writePump(ctx context.Context) {
	for frame := range c.outbound() {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.conn.Write(writeCtx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			// Unblocks the read loop.
			_ = c.conn.CloseNow()
			return
		}
	}
}
