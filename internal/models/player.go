// internal/models/player.go
package models

// Player is a seat in a room. ID is the id of the connection that created or
// joined the room.
type Player struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsHost        bool   `json:"isHost"`
	Hand          []Card `json:"hand"`
	FaceDownCards []Card `json:"faceDownCards"`
}

// NewPlayer returns a player with an empty hand and no face-down cards.
func NewPlayer(id, name string, isHost bool) Player {
	return Player{
		ID:            id,
		Name:          name,
		IsHost:        isHost,
		Hand:          []Card{},
		FaceDownCards: []Card{},
	}
}

// Clone returns a deep copy of p.
func (p Player) Clone() Player {
	p.Hand = CloneCards(p.Hand)
	p.FaceDownCards = CloneCards(p.FaceDownCards)
	return p
}

// CardCount is the total number of cards the player holds, stacks included.
func (p Player) CardCount() int {
	return CountCards(p.Hand) + CountCards(p.FaceDownCards)
}

// HandIndex returns the index of the first hand card matching ref, or -1.
func (p Player) HandIndex(ref CardRef) int {
	for i, c := range p.Hand {
		if c.Matches(ref) {
			return i
		}
	}
	return -1
}
