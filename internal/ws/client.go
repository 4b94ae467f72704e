package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

// Client is one live websocket connection bound to an authenticated user.
// A user logged in on two devices holds two clients; each receives every
// broadcast for the rooms it joined, including echoes of its own sends.
type Client struct {
	ID          string
	UserID      string
	DisplayName string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

func NewClient(conn *websocket.Conn, socketID, userID, displayName string, sendRatePerMinute int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:          socketID,
		UserID:      userID,
		DisplayName: displayName,
		conn:        conn,
		send:        make(chan []byte, 256),
		limiter:     rate.NewLimiter(rate.Limit(float64(sendRatePerMinute)/60.0), 10),
		ctx:         ctx,
		cancel:      cancel,
		rooms:       make(map[string]struct{}),
	}
}

// Context is cancelled when the connection goes away; requests started on
// behalf of this connection derive from it so a dropped socket stops its
// in-flight work.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Push queues a frame for delivery. A slow client drops frames instead of
// stalling the fan-out (it re-syncs from history on reconnect), and a
// closed client reports the frame undeliverable. The mutex serializes
// Push against Close: a broadcast snapshot may still hold a client whose
// disconnect is mid-flight, and a bare send would hit the closed channel.
func (c *Client) Push(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) AllowSend() bool {
	return c.limiter.Allow()
}

func (c *Client) trackJoin(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) trackLeave(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

// Joined reports whether this connection currently subscribes to the room.
func (c *Client) Joined(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (c *Client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	c.mu.Unlock()
	c.cancel()
}

// WritePump owns all writes on the connection: queued frames plus
// keepalive pings. One goroutine per connection.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
