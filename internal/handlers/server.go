// internal/handlers/server.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/hustle/internal/broadcast"
	"github.com/jason-s-yu/hustle/internal/middleware"
	"github.com/jason-s-yu/hustle/internal/session"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// DefaultOutboxSize is the per-connection outbound queue length used when
// Server.OutboxSize is not set.
const DefaultOutboxSize = 16

// Server holds everything the HTTP and websocket handlers share.
type Server struct {
	Manager *session.Manager
	Hub     *broadcast.Hub
	Logger  *logrus.Logger

	// OriginPatterns lists the browser origins (host[:port] patterns) allowed
	// to open a websocket or read the HTTP API cross-origin.
	OriginPatterns []string

	// PublicURL is the client address encoded into room QR codes.
	PublicURL string

	// OutboxSize is the outbound queue length of each connection.
	OutboxSize int
}

// Routes builds the router with logging and CORS applied.
func (s *Server) Routes() http.Handler {
	mux := httprouter.New()

	mux.GET("/healthz", s.serveHealthz)
	mux.GET("/rooms", s.serveRooms)
	mux.GET("/rooms/:code", s.serveRoom)
	mux.GET("/rooms/:code/qr", s.serveRoomQR)
	mux.Handler(http.MethodGet, "/ws", s.RoomWSHandler())

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		s.Logger.WithFields(logrus.Fields{"path": r.URL.Path, "panic": i}).Error("handler panicked")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}

	return middleware.LogMiddleware(s.Logger)(middleware.CORS(s.OriginPatterns)(mux))
}

func (s *Server) serveHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) outboxSize() int {
	if s.OutboxSize > 0 {
		return s.OutboxSize
	}
	return DefaultOutboxSize
}

func writeRoomError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
