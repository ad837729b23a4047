package web

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Controller is what the web package needs from the simulation. It keeps the
// web package free of a dependency on the main package.
type Controller interface {
	// State returns a JSON-encoded representation of the current simulation state.
	State() ([]byte, error)
	Pause()
	Resume()
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte
}

// reply is a message for a single client.
type reply struct {
	client  *Client
	message []byte
}

// command is a message sent by a client.
type command struct {
	Type string `json:"type"`
}

// Hub maintains the set of active clients and broadcasts messages to the clients.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound state updates.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Answers to client commands.
	replies chan reply

	controller Controller
	count      atomic.Int32
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub(controller Controller) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replies:    make(chan reply),
		clients:    make(map[*Client]bool),
		controller: controller,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case r := <-h.replies:
			if h.clients[r.client] {
				select {
				case r.client.send <- r.message:
				default:
					h.drop(r.client)
				}
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// BroadcastFullState fetches the current state and queues it for every
// client. Called once per tick; if the previous update has not gone out yet
// this one is dropped.
func (h *Hub) BroadcastFullState() {
	if h == nil {
		return
	}
	state, err := h.controller.State()
	if err != nil {
		log.Printf("web: failed to get state for broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- state:
	default:
	}
}

// handle applies one client message.
func (h *Hub) handle(client *Client, message []byte) {
	var cmd command
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Printf("web: ignoring malformed message: %v", err)
		return
	}
	switch cmd.Type {
	case "pause":
		h.controller.Pause()
	case "resume":
		h.controller.Resume()
	case "state":
	default:
		log.Printf("web: unknown message type %q", cmd.Type)
		return
	}
	state, err := h.controller.State()
	if err != nil {
		log.Printf("web: failed to get state: %v", err)
		return
	}
	select {
	case h.replies <- reply{client: client, message: state}:
	case <-h.done:
	}
}
