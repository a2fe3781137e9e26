// Package events provides best-effort fan-out of decision and order events
// to live WebSocket subscribers.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event types pushed to subscribers.
const (
	EventDecision = "decision"
	EventOrder    = "order"
)

// Event is the wire envelope for one pushed event.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DecisionEvent is the compact decision payload pushed to subscribers.
type DecisionEvent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Action    int       `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderEvent wraps the full order record.
type OrderEvent struct {
	Order *models.Order `json:"order"`
}

// Hub manages WebSocket subscribers and broadcasts pipeline events.
// Delivery is at-most-once: every subscriber connected at emit time receives
// the event unless its buffer is full, in which case the subscriber is
// disconnected. The publisher never blocks.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger
}

// Client represents a connected WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new event hub.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Should be called as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Event subscriber connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Event subscriber disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
				continue
			}

			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			// A subscriber that cannot keep up is disconnected rather than
			// allowed to block pipeline progress.
			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
				h.logger.Warn().Int("dropped", len(slow)).Msg("Slow event subscribers disconnected")
			}
		}
	}
}

// Stop signals the hub's event loop to exit.
func (h *Hub) Stop() {
	select {
	case <-h.done:
		// Already stopped
	default:
		close(h.done)
	}
}

// publish queues an event for fan-out, dropping it if the hub is saturated.
func (h *Hub) publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("type", event.Type).Msg("Broadcast channel full, dropping event")
	}
}

// BroadcastDecision pushes a decision event to all subscribers.
func (h *Hub) BroadcastDecision(decision *models.Decision) {
	h.publish(Event{
		Type: EventDecision,
		Data: DecisionEvent{
			ID:        decision.ID,
			Symbol:    decision.Symbol,
			Action:    decision.Action,
			CreatedAt: decision.CreatedAt,
		},
	})
}

// BroadcastOrder pushes an order event to all subscribers.
func (h *Hub) BroadcastOrder(order *models.Order) {
	h.publish(Event{
		Type: EventOrder,
		Data: OrderEvent{Order: order},
	})
}

// ServeWS upgrades an HTTP connection to WebSocket and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	// The hub may already be stopped; a connection arriving after that
	// must not park forever on the register channel.
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump sends messages from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection (mainly to detect close).
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Ensure Hub implements Broadcaster
var _ interfaces.Broadcaster = (*Hub)(nil)
