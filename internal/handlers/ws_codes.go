// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	UnsupportedFrameError websocket.StatusCode = 3000 // Client sent a binary frame; the protocol is JSON text only.
)
