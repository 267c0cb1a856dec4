package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for outbound events
	sendBufferSize = 256
)

// subscribeMessage is the only inbound message clients send: an optional
// narrowing of which event types they want
type subscribeMessage struct {
	Action     string   `json:"action"`
	EventTypes []string `json:"event_types"`
}

// Client represents one WebSocket consumer of the engine event feed
type Client struct {
	ID   string
	conn *websocket.Conn
	Send chan models.Event // Exported for hub access
	hub  *Hub

	eventTypes map[models.EventType]bool // nil means all events
	filterMu   sync.RWMutex
}

// NewClient creates a client around an upgraded connection
func NewClient(id string, conn *websocket.Conn, h *Hub) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		Send: make(chan models.Event, sendBufferSize),
		hub:  h,
	}
}

// Wants reports whether the client's filter matches the event type
func (c *Client) Wants(eventType models.EventType) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()

	if c.eventTypes == nil {
		return true
	}
	return c.eventTypes[eventType]
}

// TrySend queues an event without blocking.
// Returns false when the client's buffer is full.
func (c *Client) TrySend(event models.Event) bool {
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// ReadPump consumes subscribe messages until the connection drops
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg subscribeMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					fmt.Printf("client %s unexpected close: %v\n", c.ID, err)
				}
				return
			}

			if msg.Action == "subscribe" {
				c.setFilter(msg.EventTypes)
			}
		}
	}
}

// WritePump streams queued events to the peer and keeps the connection alive
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				fmt.Printf("client %s write error: %v\n", c.ID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// setFilter replaces the client's event-type filter.
// An empty list resets to all events.
func (c *Client) setFilter(eventTypes []string) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()

	if len(eventTypes) == 0 {
		c.eventTypes = nil
		return
	}

	filter := make(map[models.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[models.EventType(t)] = true
	}
	c.eventTypes = filter
}
