// internal/game/room_store.go
package game

import (
	"sort"
	"sync"

	"github.com/jason-s-yu/hustle/internal/models"
)

// RoomEntry pairs a live room with the mutex that serializes every change to
// it. Callers must hold Mu while reading or writing Room.
type RoomEntry struct {
	Mu   sync.Mutex
	Room *models.Room

	removed     bool
	actionIndex int
}

// NewRoomEntry wraps room for storage.
func NewRoomEntry(room *models.Room) *RoomEntry {
	return &RoomEntry{Room: room}
}

// Code returns the lookup key of the entry. The code never changes after
// creation, so no lock is needed.
func (e *RoomEntry) Code() string {
	return e.Room.Code
}

// MarkRemovedUnsafe flags the entry as gone from the store. Assumes Mu is held.
func (e *RoomEntry) MarkRemovedUnsafe() {
	e.removed = true
}

// RemovedUnsafe reports whether the entry was taken out of the store while a
// caller waited for its lock. Assumes Mu is held.
func (e *RoomEntry) RemovedUnsafe() bool {
	return e.removed
}

// NextActionIndexUnsafe returns a per-room, monotonically increasing action
// counter starting at 0. Assumes Mu is held.
func (e *RoomEntry) NextActionIndexUnsafe() int {
	idx := e.actionIndex
	e.actionIndex++
	return idx
}

// RoomStore keeps every live room in memory, keyed by room code. Nothing is
// persisted; rooms vanish with the process.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*RoomEntry
}

// NewRoomStore returns an empty store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*RoomEntry),
	}
}

// Add stores entry under its code. It refuses to overwrite a live room and
// returns false in that case.
func (s *RoomStore) Add(entry *RoomEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := entry.Code()
	if _, exists := s.rooms[code]; exists {
		return false
	}
	s.rooms[code] = entry
	return true
}

// Get retrieves the entry for code if it exists.
func (s *RoomStore) Get(code string) (*RoomEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	return e, ok
}

// DeleteIf removes code only while it still maps to entry.
func (s *RoomStore) DeleteIf(code string, entry *RoomEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rooms[code]; ok && cur == entry {
		delete(s.rooms, code)
		return true
	}
	return false
}

// Entries returns the live entries sorted by code. The slice is a copy, so
// callers may lock entries while iterating without holding the store.
func (s *RoomStore) Entries() []*RoomEntry {
	s.mu.Lock()
	out := make([]*RoomEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// Len returns the number of live rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
