// File: internal/handlers/message_handlers.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/weichi/go-chatroom/internal/dtos"
	"github.com/weichi/go-chatroom/internal/middleware"
	"github.com/weichi/go-chatroom/internal/repository/message"
	"github.com/weichi/go-chatroom/internal/services/chat"
)

// MessageHandler exposes the message mutation API.
type MessageHandler struct {
	Room *chat.RoomService
}

func NewMessageHandler(room *chat.RoomService) *MessageHandler {
	return &MessageHandler{Room: room}
}

// Delete soft-deletes a message authored by the requesting user and
// broadcasts the removal to the room.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.UsernameFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	err = h.Room.DeleteMessage(r.Context(), uint(id), username)
	switch {
	case errors.Is(err, message.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, message.ErrNotMessageAuthor):
		writeError(w, http.StatusForbidden, "only the author may delete a message")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete message")
	default:
		writeJSON(w, http.StatusOK, dtos.MessageResponse{Message: "message deleted"})
	}
}
