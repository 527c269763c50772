// Package sse streams pipeline events (insights, role assignment,
// capture errors) to connected reviewers over Server-Sent Events.
// Clients subscribe to one interview; the hub fans events out.
package sse

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/logger"
)

// Client is one connected SSE consumer watching one interview.
type Client struct {
	id          string
	interviewID uuid.UUID
	events      chan []byte
}

// NewClient creates a client with a buffered event channel.
func NewClient(id string, interviewID uuid.UUID) *Client {
	return &Client{
		id:          id,
		interviewID: interviewID,
		events:      make(chan []byte, 256),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// InterviewID returns the interview the client watches.
func (c *Client) InterviewID() uuid.UUID { return c.interviewID }

// Events returns the channel delivering formatted event frames.
func (c *Client) Events() <-chan []byte { return c.events }

// send delivers data without blocking. A full channel means the client
// is too slow; the frame is dropped.
func (c *Client) send(data []byte, log *logger.Logger) {
	select {
	case c.events <- data:
	default:
		log.Warn("sse client channel full, dropping frame", logger.Fields("client_id", c.id))
	}
}

type message struct {
	interviewID uuid.UUID
	data        []byte
}

// Hub routes pipeline events to subscribed clients. All mutation goes
// through the run loop's channels.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	once       sync.Once
	log        *logger.Logger
}

// NewHub creates a hub and starts its routing loop.
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, group := range h.clients {
				for _, c := range group {
					close(c.events)
				}
			}
			return
		case c := <-h.register:
			if h.clients[c.interviewID] == nil {
				h.clients[c.interviewID] = make(map[string]*Client)
			}
			h.clients[c.interviewID][c.id] = c
		case c := <-h.unregister:
			if group, ok := h.clients[c.interviewID]; ok {
				if _, ok := group[c.id]; ok {
					delete(group, c.id)
					close(c.events)
					if len(group) == 0 {
						delete(h.clients, c.interviewID)
					}
				}
			}
		case m := <-h.broadcast:
			for _, c := range h.clients[m.interviewID] {
				c.send(m.data, h.log)
			}
		}
	}
}

// Register subscribes a client.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends a formatted frame to every client on the interview.
func (h *Hub) Broadcast(interviewID uuid.UUID, data []byte) {
	select {
	case h.broadcast <- message{interviewID: interviewID, data: data}:
	case <-h.done:
	}
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}
