// internal/game/deck.go
package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jason-s-yu/hustle/internal/models"
)

const (
	// DeckSize is the number of cards in a standard deck.
	DeckSize = 52
	// FaceDownPerPlayer is how many hidden base cards each player is dealt.
	FaceDownPerPlayer = 3
	// HandPerPlayer is how many face-up cards each player is dealt into hand.
	HandPerPlayer = 9
	// CardsPerPlayer is the total dealt to each player.
	CardsPerPlayer = FaceDownPerPlayer + HandPerPlayer
)

// NewDeck builds the 52 distinct cards in suit order, values 1 through 13.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range models.Suits {
		for value := models.MinValue; value <= models.MaxValue; value++ {
			deck = append(deck, models.Card{Suit: suit, Value: value})
		}
	}
	return deck
}

// Shuffle permutes deck in place with a Fisher-Yates pass driven by r.
func Shuffle(deck []models.Card, r *rand.Rand) {
	for i := len(deck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// NewShuffledDeck returns a freshly built deck shuffled with r. A nil r uses
// a time-seeded source.
func NewShuffledDeck(r *rand.Rand) []models.Card {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	deck := NewDeck()
	Shuffle(deck, r)
	return deck
}

// Deal hands out cards from the top of deck, one player at a time in seat
// order: FaceDownPerPlayer face-down cards, then HandPerPlayer face-up hand
// cards. Any previous cards the players held are discarded. The undealt
// remainder is returned.
func Deal(players []models.Player, deck []models.Card) ([]models.Card, error) {
	need := len(players) * CardsPerPlayer
	if need > len(deck) {
		return nil, fmt.Errorf("cannot deal %d cards from a deck of %d", need, len(deck))
	}

	pos := 0
	take := func(n int, faceUp bool) []models.Card {
		out := make([]models.Card, n)
		for i := range out {
			c := deck[pos]
			c.IsFaceUp = faceUp
			c.CoveringCards = nil
			out[i] = c
			pos++
		}
		return out
	}

	for i := range players {
		players[i].FaceDownCards = take(FaceDownPerPlayer, false)
		players[i].Hand = take(HandPerPlayer, true)
	}

	remainder := make([]models.Card, len(deck)-pos)
	copy(remainder, deck[pos:])
	return remainder, nil
}
