package sessionws

import (
	"encoding/json"
	"log"

	"github.com/Ganngann/form-act-sub001/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
)

// Hub fans session events out to the connected back-office clients. The feed
// is one-way: subscribers only listen.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan services.SessionEvent
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan services.SessionEvent, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifySession implements services.StatusNotifier. A full broadcast buffer
// drops the event rather than stalling the caller.
func (h *Hub) NotifySession(event services.SessionEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("session hub: dropping event for session %d", event.SessionID)
	}
}

func (h *Hub) deliver(event services.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("session hub encode event: %v", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ReadPump drains the connection until it drops; inbound frames carry nothing
// on this feed.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
