// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/hustle/internal/broadcast"
	"github.com/jason-s-yu/hustle/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

var errUnsupportedFrame = errors.New("binary frame received")

// RoomWSHandler upgrades the request and serves one client until it goes
// away. Each connection gets a fresh id that doubles as its player id in
// every room it creates or joins.
func (s *Server) RoomWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.OriginPatterns,
		})
		if err != nil {
			s.Logger.WithField("remote", remoteAddr).WithError(err).Warn("websocket accept error")
			return
		}
		defer c.CloseNow()

		connID := uuid.NewString()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := broadcast.NewClient(connID, s.outboxSize(), cancel)
		s.Hub.Register(client)
		middleware.LogWebSocketConnect(s.Logger, connID, remoteAddr)
		s.reply(connID, broadcast.Message{Event: eventConnected, Data: connectedPayload{ID: connID}})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.writePump(ctx, c, client)
		}()

		readErr := s.readPump(ctx, c, connID)

		// leave rooms first so the remaining players are told before the
		// queue of this connection goes away
		rooms := s.Manager.Disconnect(connID)
		s.Hub.Unregister(connID)
		wg.Wait()

		middleware.LogWebSocketDisconnect(s.Logger, connID, remoteAddr, rooms, readErr)
		_ = c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump handles incoming frames in arrival order until the connection
// closes. A clean close returns nil.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, connID string) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			s.Logger.WithFields(logrus.Fields{"conn": connID, "type": typ}).Warn("received non-text frame, closing")
			_ = c.Close(UnsupportedFrameError, "only JSON text frames are supported")
			return errUnsupportedFrame
		}

		s.handleMessage(connID, msg)
	}
}

// writePump drains the client's queue onto the socket and keeps the
// connection alive with pings. It stops when the queue is closed, the
// context ends, or a write fails.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, client *broadcast.Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-client.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.WithField("conn", client.ID).WithError(err).Warn("write failed")
				client.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Logger.WithField("conn", client.ID).WithError(err).Debug("ping failed")
				client.Cancel()
				return
			}
		}
	}
}
