package ws

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client connects one agent process to a relay and adapts the connection to
// the engine's transport callbacks. Inbound frames are buffered until the
// engine drains them at its next tick.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	inbox  [][]byte
	closed bool
}

// Dial connects to relayURL (e.g. ws://host:9801/v1/ws) as agentID.
func Dial(relayURL, agentID string) (*Client, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	q := u.Query()
	q.Set("agent", agentID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{conn: conn}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		c.mu.Lock()
		if !c.closed {
			c.inbox = append(c.inbox, msg)
		}
		c.mu.Unlock()
	}
}

// Send broadcasts one encoded snapshot through the relay, fire-and-forget.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Receive drains the messages buffered since the last call.
func (c *Client) Receive() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.inbox
	c.inbox = nil
	return msgs
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
