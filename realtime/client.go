package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192

	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the pumps use.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one authenticated socket connection.
type Client struct {
	ID     string
	UserID string
	Role   string

	conn Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(id, userID, role string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send exposes the outbound queue; tests read frames from it directly.
func (c *Client) Send() <-chan []byte { return c.send }

func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Reply sends event directly to this client only.
func (c *Client) Reply(event string, data interface{}) {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		log.Printf("[Socket] failed to marshal reply %s: %v", event, err)
		return
	}
	c.enqueue(payload)
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// ReadPump reads frames until the peer goes away, handing each to handle.
func (c *Client) ReadPump(hub *Hub, handle func(*Client, Frame)) {
	defer func() {
		hub.UnsubscribeAll(c)
		c.Close()
		log.Printf("[Socket] client %s (user %s) disconnected", c.ID, c.UserID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Socket] read error for client %s: %v", c.ID, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			c.Reply("error", map[string]string{"message": "malformed frame"})
			continue
		}
		handle(c, frame)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It returns once the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[Socket] write error for client %s: %v", c.ID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
