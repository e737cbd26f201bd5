// internal/models/card.go
package models

import "fmt"

// Suit is one of the four French suits.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// Suits lists every suit in deck-building order.
var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

const (
	MinValue = 1
	MaxValue = 13
)

// Valid reports whether s names a known suit.
func (s Suit) Valid() bool {
	switch s {
	case SuitHearts, SuitDiamonds, SuitClubs, SuitSpades:
		return true
	}
	return false
}

// Card is a single playing card. A face-down base card may carry a stack of
// face-up CoveringCards placed on top of it.
type Card struct {
	Suit          Suit   `json:"suit"`
	Value         int    `json:"value"`
	IsFaceUp      bool   `json:"isFaceUp"`
	CoveringCards []Card `json:"coveringCards,omitempty"`
}

// CardRef identifies a card by suit and value only.
type CardRef struct {
	Suit  Suit `json:"suit"`
	Value int  `json:"value"`
}

// Ref returns the identity of c.
func (c Card) Ref() CardRef {
	return CardRef{Suit: c.Suit, Value: c.Value}
}

// Matches reports whether c has the same suit and value as ref.
func (c Card) Matches(ref CardRef) bool {
	return c.Suit == ref.Suit && c.Value == ref.Value
}

func (c Card) String() string {
	return fmt.Sprintf("%d_of_%s", c.Value, c.Suit)
}

// Clone returns a deep copy of c, including any covering cards.
func (c Card) Clone() Card {
	c.CoveringCards = CloneCards(c.CoveringCards)
	return c
}

// CloneCards deep-copies a card slice. A nil slice stays nil and an empty
// slice stays empty, so JSON output keeps its shape.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

// CountCards returns the number of cards in cards, counting every covering
// card stacked on them.
func CountCards(cards []Card) int {
	n := 0
	for _, c := range cards {
		n += 1 + CountCards(c.CoveringCards)
	}
	return n
}
