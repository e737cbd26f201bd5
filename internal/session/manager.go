// internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/jason-s-yu/hustle/internal/game"
	"github.com/jason-s-yu/hustle/internal/models"
	"github.com/sirupsen/logrus"
)

// maxCodeAttempts bounds how many random codes Create tries before giving up.
const maxCodeAttempts = 10

// ActionPublisher receives a record of every successful room action.
type ActionPublisher interface {
	Publish(ctx context.Context, record cache.ActionRecord) error
}

// Manager applies player actions to rooms. Every change to a room happens
// while holding that room's lock, and its snapshot is handed to the
// Broadcaster before the lock is released, so clients receive a room's
// snapshots in the order the changes were applied.
type Manager struct {
	store       *game.RoomStore
	broadcaster Broadcaster
	logger      logrus.FieldLogger

	// Actions, when set, is fed every action asynchronously.
	Actions ActionPublisher

	// NewDeck returns the shuffled deck dealt when a game starts.
	NewDeck func() []models.Card

	// NewCode returns a candidate room code.
	NewCode func() string
}

// NewManager returns a Manager over store. A nil broadcaster drops events and
// a nil logger falls back to the logrus standard logger.
func NewManager(store *game.RoomStore, broadcaster Broadcaster, logger logrus.FieldLogger) *Manager {
	if broadcaster == nil {
		broadcaster = BroadcastFunc(func(Event) {})
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		NewDeck:     func() []models.Card { return game.NewShuffledDeck(nil) },
		NewCode:     game.GenerateRoomCode,
	}
}

// Create opens a new waiting room with connID as its host and only player.
func (m *Manager) Create(connID, playerName string) (*models.Room, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		room := &models.Room{
			ID:      uuid.NewString(),
			Code:    m.NewCode(),
			Players: []models.Player{models.NewPlayer(connID, playerName, true)},
			Status:  models.RoomWaiting,
		}
		entry := game.NewRoomEntry(room)

		entry.Mu.Lock()
		if !m.store.Add(entry) {
			entry.Mu.Unlock()
			m.logger.WithFields(logrus.Fields{"room": room.Code, "attempt": attempt}).Warn("room code collision, retrying")
			continue
		}
		m.logActionUnsafe(entry, connID, "room_create", map[string]interface{}{"playerName": playerName})
		snap := room.Clone()
		entry.Mu.Unlock()

		m.logger.WithFields(logrus.Fields{"room": room.Code, "conn": connID, "player": playerName}).Info("room created")
		return snap, nil
	}
	return nil, ErrRoomCodeExhausted
}

// Join seats connID in the room with the given code. Joining a room the
// connection already sits in returns the room unchanged.
func (m *Manager) Join(connID, code, playerName string) (*models.Room, error) {
	snap, changed, err := m.apply(code, EventRoomUpdated, func(e *game.RoomEntry) (bool, error) {
		room := e.Room
		if room.PlayerIndex(connID) >= 0 {
			return false, nil
		}
		if len(room.Players) >= models.MaxPlayers {
			return false, ErrRoomFull
		}
		room.Players = append(room.Players, models.NewPlayer(connID, playerName, false))
		m.logActionUnsafe(e, connID, "room_join", map[string]interface{}{"playerName": playerName})
		return true, nil
	})
	if err != nil {
		m.rejected(code, connID, "join", err)
		return nil, err
	}
	if changed {
		m.logger.WithFields(logrus.Fields{"room": snap.Code, "conn": connID, "player": playerName}).Info("player joined room")
	}
	return snap, nil
}

// Start deals a fresh deck and moves the room to playing. Only the host may
// start, only once, and only with at least MinPlayersToStart players.
func (m *Manager) Start(connID, code string) (*models.Room, error) {
	snap, _, err := m.apply(code, EventRoomUpdated, func(e *game.RoomEntry) (bool, error) {
		room := e.Room
		idx := room.PlayerIndex(connID)
		if idx < 0 {
			return false, ErrPlayerNotFound
		}
		if !room.Players[idx].IsHost {
			return false, ErrNotHost
		}
		if len(room.Players) < models.MinPlayersToStart {
			return false, ErrInsufficientPlayers
		}
		if room.GameStarted {
			return false, ErrGameAlreadyStarted
		}

		rest, err := game.Deal(room.Players, m.NewDeck())
		if err != nil {
			return false, fmt.Errorf("deal cards: %w", err)
		}
		room.Deck = rest
		room.GameStarted = true
		room.Status = models.RoomPlaying
		room.CurrentTurn = room.Players[0].ID
		room.CurrentPlayer = room.Players[0].ID

		m.logActionUnsafe(e, connID, "game_start", map[string]interface{}{
			"players":   len(room.Players),
			"undealt":   len(rest),
			"firstTurn": room.CurrentTurn,
		})
		return true, nil
	})
	if err != nil {
		m.rejected(code, connID, "start", err)
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{"room": snap.Code, "conn": connID, "players": len(snap.Players)}).Info("game started")
	return snap, nil
}

// PlaceCard moves the hand card matching card onto the face-down card at
// faceDownIdx, face up. Turn order is not checked: any seated player may
// place at any time.
func (m *Manager) PlaceCard(connID, code string, faceDownIdx int, card models.CardRef) (*models.Room, error) {
	snap, _, err := m.apply(code, EventRoomUpdated, func(e *game.RoomEntry) (bool, error) {
		room := e.Room
		idx := room.PlayerIndex(connID)
		if idx < 0 {
			return false, ErrPlayerNotFound
		}
		player := &room.Players[idx]

		handIdx := player.HandIndex(card)
		if handIdx < 0 {
			return false, ErrCardNotInHand
		}
		if faceDownIdx < 0 || faceDownIdx >= len(player.FaceDownCards) {
			return false, ErrInvalidCardIndex
		}

		placed := player.Hand[handIdx]
		placed.IsFaceUp = true
		player.Hand = append(player.Hand[:handIdx], player.Hand[handIdx+1:]...)

		base := &player.FaceDownCards[faceDownIdx]
		base.CoveringCards = append(base.CoveringCards, placed)

		m.logActionUnsafe(e, connID, "place_card", map[string]interface{}{
			"faceDownCardIndex": faceDownIdx,
			"suit":              placed.Suit,
			"value":             placed.Value,
		})
		return true, nil
	})
	if err != nil {
		m.rejected(code, connID, "place card", err)
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{"room": snap.Code, "conn": connID, "card": card.Suit, "value": card.Value}).Debug("card placed")
	return snap, nil
}

// Disconnect removes connID from every room it sits in. Rooms left empty are
// deleted; the others are told the player left. The host role is not handed
// to anyone else. It returns the codes of the rooms the connection left.
func (m *Manager) Disconnect(connID string) []string {
	var left []string
	for _, entry := range m.store.Entries() {
		entry.Mu.Lock()
		if entry.RemovedUnsafe() {
			entry.Mu.Unlock()
			continue
		}
		room := entry.Room
		idx := room.PlayerIndex(connID)
		if idx < 0 {
			entry.Mu.Unlock()
			continue
		}

		room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
		m.logActionUnsafe(entry, connID, "player_leave", map[string]interface{}{"remaining": len(room.Players)})
		left = append(left, room.Code)

		if len(room.Players) == 0 {
			entry.MarkRemovedUnsafe()
			m.store.DeleteIf(room.Code, entry)
			entry.Mu.Unlock()
			m.logger.WithFields(logrus.Fields{"room": room.Code, "conn": connID}).Info("last player left, room removed")
			continue
		}

		snap := room.Clone()
		m.broadcaster.Broadcast(Event{Type: EventPlayerLeft, Room: snap})
		entry.Mu.Unlock()
		m.logger.WithFields(logrus.Fields{"room": snap.Code, "conn": connID, "remaining": len(snap.Players)}).Info("player left room")
	}
	return left
}

// Room returns a snapshot of the room with the given code.
func (m *Manager) Room(code string) (*models.Room, error) {
	snap, _, err := m.apply(code, "", func(*game.RoomEntry) (bool, error) { return false, nil })
	return snap, err
}

// RoomSummary is the short listing form of a room.
type RoomSummary struct {
	Code        string            `json:"code"`
	Status      models.RoomStatus `json:"status"`
	GameStarted bool              `json:"gameStarted"`
	Players     int               `json:"players"`
	Host        string            `json:"host,omitempty"`
}

// Rooms lists every live room, ordered by code.
func (m *Manager) Rooms() []RoomSummary {
	entries := m.store.Entries()
	out := make([]RoomSummary, 0, len(entries))
	for _, entry := range entries {
		entry.Mu.Lock()
		if entry.RemovedUnsafe() {
			entry.Mu.Unlock()
			continue
		}
		room := entry.Room
		sum := RoomSummary{
			Code:        room.Code,
			Status:      room.Status,
			GameStarted: room.GameStarted,
			Players:     len(room.Players),
		}
		if host, ok := room.Host(); ok {
			sum.Host = host.Name
		}
		entry.Mu.Unlock()
		out = append(out, sum)
	}
	return out
}

// apply runs fn against the locked room for code and snapshots the room
// before unlocking. fn reports whether it changed anything; a change is
// broadcast as ev while the lock is still held. An empty ev broadcasts
// nothing. On error the room must be left exactly as fn found it.
func (m *Manager) apply(code string, ev EventType, fn func(e *game.RoomEntry) (bool, error)) (*models.Room, bool, error) {
	entry, ok := m.store.Get(game.NormalizeRoomCode(code))
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	entry.Mu.Lock()
	defer entry.Mu.Unlock()

	// the last player may have left while we waited for the lock
	if entry.RemovedUnsafe() {
		return nil, false, ErrRoomNotFound
	}
	changed, err := fn(entry)
	if err != nil {
		return nil, false, err
	}
	snap := entry.Room.Clone()
	if changed && ev != "" {
		m.broadcaster.Broadcast(Event{Type: ev, Room: snap})
	}
	return snap, changed, nil
}

func (m *Manager) rejected(code, connID, action string, err error) {
	m.logger.WithFields(logrus.Fields{
		"room":   code,
		"conn":   connID,
		"action": action,
	}).WithError(err).Info("action rejected")
}

// logActionUnsafe hands a record of the action to the publisher without
// blocking the caller. Assumes e.Mu is held.
func (m *Manager) logActionUnsafe(e *game.RoomEntry, actorID, actionType string, payload map[string]interface{}) {
	if m.Actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.ActionRecord{
		RoomID:        e.Room.ID,
		RoomCode:      e.Room.Code,
		ActionIndex:   e.NextActionIndexUnsafe(),
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.Actions.Publish(ctx, rec); err != nil {
			m.logger.WithFields(logrus.Fields{
				"room":   rec.RoomCode,
				"action": rec.ActionType,
				"index":  rec.ActionIndex,
			}).WithError(err).Warn("failed to publish room action")
		}
	}(record)
}
