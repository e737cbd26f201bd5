// internal/session/events.go
package session

import "github.com/jason-s-yu/hustle/internal/models"

// EventType names a server-to-room push.
type EventType string

const (
	// EventRoomUpdated follows a join, a game start, or a card placement.
	EventRoomUpdated EventType = "roomUpdated"
	// EventPlayerLeft follows a disconnect that leaves the room non-empty.
	EventPlayerLeft EventType = "playerLeft"
)

// Event carries a full room snapshot to every member of that room. Room is a
// deep copy taken under the room lock and is never mutated afterwards.
type Event struct {
	Type EventType
	Room *models.Room
}

// Broadcaster delivers events to the connections of a room. It is called
// with the room's lock held, so implementations must not block on slow
// connections or call back into the Manager.
type Broadcaster interface {
	Broadcast(ev Event)
}

// BroadcastFunc adapts a function to the Broadcaster interface.
type BroadcastFunc func(ev Event)

// Broadcast calls f(ev).
func (f BroadcastFunc) Broadcast(ev Event) {
	f(ev)
}
