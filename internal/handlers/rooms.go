// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jason-s-yu/hustle/internal/game"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// qrSize is the edge length in pixels of room QR codes.
const qrSize = 320

// serveRooms lists the live rooms, mostly for debugging.
func (s *Server) serveRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Manager.Rooms()); err != nil {
		s.Logger.WithError(err).Warn("failed to encode room list")
	}
}

// serveRoom returns the full snapshot of one room.
func (s *Server) serveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Manager.Room(ps.ByName("code"))
	if err != nil {
		writeRoomError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(room); err != nil {
		s.Logger.WithError(err).Warn("failed to encode room")
	}
}

// serveRoomQR renders a PNG QR code pointing players at the client with the
// room code prefilled.
func (s *Server) serveRoomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Manager.Room(ps.ByName("code"))
	if err != nil {
		writeRoomError(w, err)
		return
	}

	png, err := qrcode.Encode(s.JoinURL(room.Code), qrcode.Medium, qrSize)
	if err != nil {
		s.Logger.WithField("room", room.Code).WithError(err).Warn("qr generation failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// JoinURL is the client link that opens the lobby with code filled in.
func (s *Server) JoinURL(code string) string {
	base := strings.TrimSuffix(s.PublicURL, "/")
	return base + "/?room=" + url.QueryEscape(game.NormalizeRoomCode(code))
}
