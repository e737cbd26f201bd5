// internal/models/room.go
package models

// RoomStatus is the lifecycle phase of a room.
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
	// RoomFinished is declared for clients but nothing transitions to it yet.
	RoomFinished RoomStatus = "finished"
)

// MaxPlayers is the seat limit of a room.
const MaxPlayers = 4

// MinPlayersToStart is the number of players required before the host may start.
const MinPlayersToStart = 2

// Room is the authoritative state of one game session. The whole struct is
// sent to clients as a snapshot after every change.
type Room struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Players     []Player   `json:"players"`
	Status      RoomStatus `json:"status"`
	GameStarted bool       `json:"gameStarted"`
	CurrentTurn string     `json:"currentTurn"`

	// Deck holds the cards left undealt once the game starts.
	Deck []Card `json:"deck,omitempty"`

	// CurrentPlayer mirrors the first player's id for older clients.
	CurrentPlayer string `json:"currentPlayer,omitempty"`
}

// Clone returns a deep copy of r that shares no slices with it.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		out.Players[i] = p.Clone()
	}
	out.Deck = CloneCards(r.Deck)
	return &out
}

// PlayerIndex returns the seat index of the player with the given id, or -1.
func (r *Room) PlayerIndex(id string) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Host returns the host player, if one is still seated.
func (r *Room) Host() (Player, bool) {
	for _, p := range r.Players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}

// TotalCards counts every card in the room: all players' cards plus the
// undealt deck.
func (r *Room) TotalCards() int {
	n := CountCards(r.Deck)
	for _, p := range r.Players {
		n += p.CardCount()
	}
	return n
}
