package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Incoming is a message sent by a browser client.
type Incoming struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Outgoing is a message pushed to browser clients.
type Outgoing struct {
	Type     string `json:"type"`
	Payload  any    `json:"payload,omitempty"`
	ErrorMsg string `json:"error,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type unicast struct {
	to   *client
	data []byte
}

// Hub fans state pushes out to every connected WebSocket client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	direct     chan unicast
	register   chan *client
	unregister chan *client
	count      chan chan int
	done       chan struct{}
	log        *zap.Logger
}

// NewHub returns a hub; Run must be started before clients connect.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 16),
		direct:     make(chan unicast, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done, then drops every
// client. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case msg := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, msg)
			}
		case u := <-h.direct:
			if h.clients[u.to] {
				h.deliver(u.to, u.data)
			}
		}
	}
}

// deliver drops a client whose buffer is full.
func (h *Hub) deliver(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("client too slow, dropping")
		close(c.send)
		delete(h.clients, c)
	}
}

// Len reports the number of connected clients, or 0 once the hub stopped.
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(ctx context.Context, msg Outgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-ctx.Done():
	case <-h.done:
	}
}

func (c *client) sendJSON(ctx context.Context, msg Outgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("marshal message", zap.Error(err))
		return
	}
	select {
	case c.hub.direct <- unicast{to: c, data: data}:
	case <-ctx.Done():
	case <-c.hub.done:
	}
}

func (c *client) readPump(ctx context.Context, handle func(context.Context, *client, Incoming)) {
	defer func() {
		// The request may already be gone; only a stopped hub skips this.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(5120)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.hub.log.Debug("websocket read ended", zap.Error(err))
			return
		}
		var msg Incoming
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(ctx, Outgoing{Type: "error", ErrorMsg: "invalid message"})
			continue
		}
		handle(ctx, c, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
