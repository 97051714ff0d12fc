// Package realtime delivers chat events to websocket clients. The Hub tracks
// which connections joined which appointment room on this instance and a
// broker decides how published events reach the hubs.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	EventJoinChat    = "joinChat"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"
	EventError       = "error"
)

// Envelope is the frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode builds a frame for event with data as its payload.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event data")
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event")
	}
	return frame, nil
}

// Client is one socket connection. Frames queue on send and a single writer
// drains them, so nothing else writes to the connection.
type Client struct {
	ID        string
	Principal models.Principal

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(principal models.Principal, buffer int) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		ID:        uuid.NewString(),
		Principal: principal,
		send:      make(chan []byte, buffer),
	}
}

// Frames is the queue the writer drains. It is closed when the client is dropped.
func (c *Client) Frames() <-chan []byte {
	return c.send
}

// Deliver queues frame without blocking. It fails when the client is closed
// or its buffer is full.
func (c *Client) Deliver(frame []byte) bool {
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

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub keeps room membership for the sockets connected to this instance.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
		logger: logger,
	}
}

func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	rooms, ok := h.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[c] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave removes c from every room it joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[c] {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, c)
}

// Broadcast queues frame for every member of room and returns how many
// accepted it. Members whose buffer is full are dropped from the hub and closed.
func (h *Hub) Broadcast(room string, frame []byte) int {
	h.mu.RLock()
	var delivered int
	var slow []*Client
	for c := range h.rooms[room] {
		if c.Deliver(frame) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow socket client",
			zap.String("client_id", c.ID),
			zap.String("room", room))
		h.Leave(c)
		c.Close()
	}
	return delivered
}

// RoomSize reports how many local clients joined room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
