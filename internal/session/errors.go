// internal/session/errors.go
package session

import "errors"

// Errors returned by Manager operations. Each is reported only to the
// connection that asked; ClientMessage turns them into the text clients show.
var (
	// not found
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found in room")

	// permission denied
	ErrNotHost = errors.New("only the host can start the game")

	// precondition failed
	ErrRoomFull            = errors.New("room is full")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrRoomCodeExhausted   = errors.New("could not allocate a unique room code")

	// validation failed
	ErrInvalidCardIndex = errors.New("face-down card index out of range")
	ErrCardNotInHand    = errors.New("card not found in hand")
)

var clientMessages = map[error]string{
	ErrRoomNotFound:        "Room not found",
	ErrPlayerNotFound:      "Player not found",
	ErrNotHost:             "Only the host can start the game",
	ErrRoomFull:            "Room is full",
	ErrInsufficientPlayers: "Need at least 2 players to start the game",
	ErrGameAlreadyStarted:  "Game already started",
	ErrInvalidCardIndex:    "Invalid face-down card index",
	ErrCardNotInHand:       "Card not found in hand",
}

// ClientMessage maps err to the message sent back to the client. Errors
// without a dedicated message, internal failures included, map to fallback.
func ClientMessage(err error, fallback string) string {
	for target, msg := range clientMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return fallback
}
