package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/dashboard"
)

// Message types sent over the websocket
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypePong     = "pong"
)

// Message is one websocket frame
type Message struct {
	Type      string            `json:"type"`
	Trigger   dashboard.Trigger `json:"trigger,omitempty"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

type envelope struct {
	userID  string
	message *Message
}

// Hub fans controller state changes out to the websocket clients of the
// same user.
type Hub struct {
	clients    map[*Client]bool
	watches    map[string]func()
	register   chan *Client
	unregister chan *Client
	broadcast  chan *envelope
	log        zerolog.Logger
	mu         sync.RWMutex
	stopCh     chan struct{}
	stopOnce   sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub creates a hub. Run must be started for messages to flow.
func NewHub(log zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		ctx:        ctx,
		cancel:     cancel,
		clients:    make(map[*Client]bool),
		watches:    make(map[string]func()),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *envelope, 256),
		log:        log.With().Str("component", "hub").Logger(),
		stopCh:     make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.removeClient(client)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Stop stops the hub and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.cancel()

		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
			client.conn.Close()
		}
		for userID, unsubscribe := range h.watches {
			unsubscribe()
			delete(h.watches, userID)
		}
	})
}

// Register adds a client and queues the current snapshot as its first message
func (h *Hub) Register(client *Client) bool {
	if msg, err := snapshotMessage("", client.controller.Snapshot()); err == nil {
		if data, err := json.Marshal(msg); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
		return true
	case <-h.stopCh:
		return false
	}
}

// Watch publishes every state change of c to userID's clients. Watching a
// user again replaces the previous subscription.
func (h *Hub) Watch(userID string, c *dashboard.Controller) {
	unsubscribe := c.Subscribe(func(trigger dashboard.Trigger, snap dashboard.Snapshot) {
		h.Publish(userID, trigger, snap)
	})

	h.mu.Lock()
	previous := h.watches[userID]
	h.watches[userID] = unsubscribe
	h.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// Unwatch stops publishing userID's state changes
func (h *Hub) Unwatch(userID string) {
	h.mu.Lock()
	unsubscribe := h.watches[userID]
	delete(h.watches, userID)
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Publish queues a snapshot for userID's clients. It never blocks; when the
// queue is full the update is dropped and the next one carries the state.
func (h *Hub) Publish(userID string, trigger dashboard.Trigger, snap dashboard.Snapshot) {
	msg, err := snapshotMessage(trigger, snap)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("marshal snapshot")
		return
	}

	select {
	case h.broadcast <- &envelope{userID: userID, message: msg}:
	case <-h.stopCh:
	default:
		h.log.Warn().Str("user_id", userID).Str("trigger", string(trigger)).Msg("broadcast queue full, update dropped")
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) deliver(env *envelope) {
	data, err := json.Marshal(env.message)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal broadcast message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.userID != env.userID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// client buffer full
		}
	}
}

// context is canceled when the hub stops
func (h *Hub) context() context.Context {
	return h.ctx
}

// Stats returns the number of connected clients and watched sessions
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]int{
		"clients":  len(h.clients),
		"sessions": len(h.watches),
	}
}

func snapshotMessage(trigger dashboard.Trigger, snap dashboard.Snapshot) (*Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      TypeSnapshot,
		Trigger:   trigger,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Client is one websocket connection of a signed-in user
type Client struct {
	ID         string
	userID     string
	conn       *websocket.Conn
	hub        *Hub
	controller *dashboard.Controller
	send       chan []byte
}

// NewClient creates a client for userID's session
func NewClient(hub *Hub, conn *websocket.Conn, id, userID string, controller *dashboard.Controller) *Client {
	return &Client{
		ID:         id,
		userID:     userID,
		conn:       conn,
		hub:        hub,
		controller: controller,
		send:       make(chan []byte, 64),
	}
}

// ReadPump reads client requests until the connection closes
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopCh:
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
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("client_id", c.ID).Msg("websocket read")
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump writes queued messages and keeps the connection alive
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
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

func (c *Client) handleMessage(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.queue(&Message{Type: TypeError, Error: "invalid message format", Timestamp: time.Now().UTC()})
		return
	}

	switch msg.Type {
	case "ping":
		c.queue(&Message{Type: TypePong, Timestamp: time.Now().UTC()})
	case TypeSnapshot:
		c.sendSnapshot()
	default:
		c.queue(&Message{Type: TypeError, Error: "unknown message type", Timestamp: time.Now().UTC()})
	}
}

func (c *Client) sendSnapshot() {
	msg, err := snapshotMessage("", c.controller.Snapshot())
	if err != nil {
		c.hub.log.Error().Err(err).Msg("marshal snapshot")
		return
	}
	c.queue(msg)
}

// queue sends msg unless the client has left the hub, whose removal closes
// the send channel.
func (c *Client) queue(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
