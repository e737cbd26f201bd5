// internal/game/room_code.go
package game

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RoomCodeLength is the number of base-36 characters in a room code.
const RoomCodeLength = 6

var (
	codeMu  sync.Mutex
	codeRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateRoomCode returns a random upper-case base-36 code of RoomCodeLength
// characters. Uniqueness is the store's job.
func GenerateRoomCode() string {
	codeMu.Lock()
	defer codeMu.Unlock()

	var b strings.Builder
	b.Grow(RoomCodeLength)
	for b.Len() < RoomCodeLength {
		b.WriteString(strconv.FormatInt(int64(codeRng.Intn(36)), 36))
	}
	return strings.ToUpper(b.String())
}

// NormalizeRoomCode trims and upper-cases a code typed by a player.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
