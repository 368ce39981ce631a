// File: internal/handlers/ws_handler.go
package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/weichi/go-chatroom/internal/services/chat"
	"github.com/weichi/go-chatroom/internal/services/user_services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP layer already allows all origins; the room is token-gated.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler admits WebSocket connections into the chat room.
type WSHandler struct {
	AuthService *user_services.AuthService
	Room        *chat.RoomService
	SendBuffer  int
}

func NewWSHandler(authService *user_services.AuthService, room *chat.RoomService, sendBuffer int) *WSHandler {
	return &WSHandler{AuthService: authService, Room: room, SendBuffer: sendBuffer}
}

// Serve upgrades the connection, verifies the bearer token from the query
// string, and hands the session to the room. A missing or invalid token
// closes the connection with the auth-failure code before any frame is
// exchanged.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WSHandler] Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		closeWithCode(conn, chat.CloseInvalidToken, "token missing")
		return
	}

	username, err := h.AuthService.VerifyToken(token)
	if err != nil {
		closeWithCode(conn, chat.CloseInvalidToken, "invalid token")
		return
	}

	client := chat.NewClient(conn, r.RemoteAddr, username, h.SendBuffer)
	go client.WritePump()
	h.Room.HandleClient(r.Context(), client)
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}
