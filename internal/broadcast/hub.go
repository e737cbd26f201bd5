// internal/broadcast/hub.go
package broadcast

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/jason-s-yu/hustle/internal/models"
	"github.com/jason-s-yu/hustle/internal/session"
	"github.com/sirupsen/logrus"
)

// ErrUnknownClient is returned by Send when no client has the given id.
var ErrUnknownClient = errors.New("unknown client")

// Message is the envelope of every frame the server writes. Ack is set only
// on replies to a client request and echoes the request's ack id.
type Message struct {
	Event string      `json:"event"`
	Ack   *int64      `json:"ack,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// RoomPayload is the data of a room push or a successful reply.
type RoomPayload struct {
	Room *models.Room `json:"room"`
}

// Client is a single connection's outbound queue. The write loop owning the
// socket drains OutChan until it is closed.
type Client struct {
	ID      string
	OutChan chan []byte
	Cancel  func()
}

// NewClient returns a client with an outbound queue of the given size.
func NewClient(id string, queueSize int, cancel func()) *Client {
	return &Client{
		ID:      id,
		OutChan: make(chan []byte, queueSize),
		Cancel:  cancel,
	}
}

// Hub tracks connected clients and fans room snapshots out to them. A room's
// group is its player list: each player id is the id of the connection that
// created or joined the room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds c to the hub, replacing nothing: ids are unique per connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes the client and closes its queue, which stops its write
// loop. Safe to call more than once.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.OutChan)
	}
	h.mu.Unlock()

	if ok && c.Cancel != nil {
		c.Cancel()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues msg for a single client.
func (h *Hub) Send(id string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return ErrUnknownClient
	}
	h.enqueueUnsafe(c, data, msg.Event)
	return nil
}

// Broadcast implements session.Broadcaster. The snapshot is serialized once
// and queued to every player of the room that is still connected.
func (h *Hub) Broadcast(ev session.Event) {
	if ev.Room == nil {
		return
	}
	data, err := json.Marshal(Message{Event: string(ev.Type), Data: RoomPayload{Room: ev.Room}})
	if err != nil {
		h.logger.WithField("room", ev.Room.Code).WithError(err).Warn("failed to marshal room event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, p := range ev.Room.Players {
		c, ok := h.clients[p.ID]
		if !ok {
			continue
		}
		if h.enqueueUnsafe(c, data, string(ev.Type)) {
			delivered++
		}
	}
	h.logger.WithFields(logrus.Fields{
		"room":      ev.Room.Code,
		"event":     ev.Type,
		"delivered": delivered,
	}).Debug("room event broadcast")
}

// enqueueUnsafe pushes data onto the client's queue without blocking. A full
// queue drops the frame. Assumes h.mu is held, so the queue cannot be closed
// underneath us.
func (h *Hub) enqueueUnsafe(c *Client, data []byte, event string) bool {
	select {
	case c.OutChan <- data:
		return true
	default:
		h.logger.WithFields(logrus.Fields{"conn": c.ID, "event": event}).Warn("outbound queue full, dropped message")
		return false
	}
}
