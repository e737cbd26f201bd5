// internal/handlers/protocol.go
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/hustle/internal/broadcast"
	"github.com/jason-s-yu/hustle/internal/models"
	"github.com/jason-s-yu/hustle/internal/session"
	"github.com/sirupsen/logrus"
)

// Events the server sends that are not replies to a request.
const (
	eventConnected = "connected"
	eventError     = "error"
)

// Envelope is a client request. Ack, when present, is echoed on the reply so
// the client can match it to its callback.
type Envelope struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ackResponse carries either the room after a successful action or the
// reason it was refused.
type ackResponse struct {
	Room  *models.Room `json:"room,omitempty"`
	Error string       `json:"error,omitempty"`
}

type connectedPayload struct {
	ID string `json:"id"`
}

type createRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type startGameRequest struct {
	RoomCode string `json:"roomCode"`
}

type placeCardRequest struct {
	RoomCode          string         `json:"roomCode"`
	FaceDownCardIndex int            `json:"faceDownCardIndex"`
	CoveringCard      models.CardRef `json:"coveringCard"`
}

// action is one request type. fallback is what the client sees when the
// failure has no more specific message.
type action struct {
	fallback string
	run      func(s *Server, connID string, data json.RawMessage) (*models.Room, error)
}

var actions = map[string]action{
	"createRoom": {
		fallback: "Failed to create room",
		run: func(s *Server, connID string, data json.RawMessage) (*models.Room, error) {
			var req createRoomRequest
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return s.Manager.Create(connID, req.PlayerName)
		},
	},
	"joinRoom": {
		fallback: "Failed to join room",
		run: func(s *Server, connID string, data json.RawMessage) (*models.Room, error) {
			var req joinRoomRequest
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return s.Manager.Join(connID, req.RoomCode, req.PlayerName)
		},
	},
	"startGame": {
		fallback: "Failed to start game",
		run: func(s *Server, connID string, data json.RawMessage) (*models.Room, error) {
			var req startGameRequest
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return s.Manager.Start(connID, req.RoomCode)
		},
	},
	"placeCard": {
		fallback: "Failed to place card",
		run: func(s *Server, connID string, data json.RawMessage) (*models.Room, error) {
			var req placeCardRequest
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return s.Manager.PlaceCard(connID, req.RoomCode, req.FaceDownCardIndex, req.CoveringCard)
		},
	},
}

// decodeData unmarshals a request payload. A missing payload decodes as {}.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// handleMessage runs one client frame and queues the reply for that client.
// Any broadcast the action causes is queued before the reply.
func (s *Server) handleMessage(connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.Logger.WithField("conn", connID).WithError(err).Warn("invalid json from client")
		s.reply(connID, broadcast.Message{Event: eventError, Data: ackResponse{Error: "Invalid JSON format"}})
		return
	}

	act, ok := actions[env.Event]
	if !ok {
		s.Logger.WithFields(logrus.Fields{"conn": connID, "event": env.Event}).Warn("unknown event")
		s.reply(connID, broadcast.Message{
			Event: env.Event,
			Ack:   env.Ack,
			Data:  ackResponse{Error: fmt.Sprintf("Unknown event: %s", env.Event)},
		})
		return
	}

	var resp ackResponse
	room, err := s.dispatch(connID, env.Event, act, env.Data)
	if err != nil {
		resp.Error = session.ClientMessage(err, act.fallback)
	} else {
		resp.Room = room
	}
	s.reply(connID, broadcast.Message{Event: env.Event, Ack: env.Ack, Data: resp})
}

// dispatch runs the action, turning a panic into an error so that one bad
// request cannot take the connection down.
func (s *Server) dispatch(connID, event string, act action, data json.RawMessage) (room *models.Room, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.WithFields(logrus.Fields{"conn": connID, "event": event, "panic": r}).Error("action panicked")
			room, err = nil, fmt.Errorf("%s: panic: %v", event, r)
		}
	}()
	room, err = act.run(s, connID, data)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{"conn": connID, "event": event}).WithError(err).Debug("action failed")
	}
	return room, err
}

func (s *Server) reply(connID string, msg broadcast.Message) {
	if err := s.Hub.Send(connID, msg); err != nil {
		s.Logger.WithFields(logrus.Fields{"conn": connID, "event": msg.Event}).WithError(err).Warn("failed to queue reply")
	}
}
