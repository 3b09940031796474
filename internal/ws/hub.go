package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/proctorhub/backend/internal/session"
)

var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	done chan struct{}
}

// send is never closed; removal is signalled through done so that a
// goroutine still holding the client can keep queueing messages safely.
// A queue attempt after removal is a silent drop, never a panic.
func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.RemoveClient(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub routes alert events to the websocket clients subscribed to the
// event's session. Subscribers only receive events logged after they
// join; there is no history replay over the socket.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	rooms    map[string]map[*client]bool
	maxConns int

	onDrop func()
}

// NewHub creates a hub. maxConns of 0 means unlimited.
func NewHub(maxConns int) *Hub {
	return &Hub{
		clients:  make(map[*client]bool),
		rooms:    make(map[string]map[*client]bool),
		maxConns: maxConns,
	}
}

// SetDropHook registers a callback fired whenever a slow client is
// disconnected. Must be called before the hub starts taking clients.
func (h *Hub) SetDropHook(fn func()) {
	h.onDrop = fn
}

func (h *Hub) AddClient(conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := &client{
		conn: conn,
		hub:  h,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	return c, nil
}

func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for id, room := range h.rooms {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, id)
			}
		}
		close(c.done)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribe(c *client, sessionID string) {
	h.mu.Lock()
	if h.clients[c] {
		room := h.rooms[sessionID]
		if room == nil {
			room = make(map[*client]bool)
			h.rooms[sessionID] = room
		}
		room[c] = true
	}
	h.mu.Unlock()
}

func (h *Hub) Unsubscribe(c *client, sessionID string) {
	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	h.mu.Unlock()
}

// Publish fans an event out to the session's subscribers. It never
// blocks on a client's socket; a client whose queue is full is
// disconnected rather than allowed to stall ingestion.
func (h *Hub) Publish(ev *session.Event) {
	msg := WSMessage{
		Type: MsgAlert,
		Payload: AlertPayload{
			SessionID: ev.SessionID,
			Event:     ev,
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("alert marshal error: %v", err)
		return
	}

	h.mu.RLock()
	room := h.rooms[ev.SessionID]
	clients := make([]*client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.done:
			// Removed between the snapshot and the send.
		case c.send <- data:
		default:
			log.Printf("ws client too slow, disconnecting")
			h.RemoveClient(c)
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
