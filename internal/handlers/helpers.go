// File: internal/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/weichi/go-chatroom/internal/dtos"
)

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Handlers] Failed to encode response: %v", err)
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dtos.ErrorResponse{Error: msg})
}
