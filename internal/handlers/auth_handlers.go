// File: internal/handlers/auth_handlers.go
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/weichi/go-chatroom/internal/dtos"
	"github.com/weichi/go-chatroom/internal/middleware"
	"github.com/weichi/go-chatroom/internal/services/user_services"
)

// AuthHandler holds the dependencies for authentication handlers.
type AuthHandler struct {
	AuthService *user_services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *user_services.AuthService) *AuthHandler {
	return &AuthHandler{AuthService: service}
}

// Register handles new user registrations.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.AuthService.Register(r.Context(), req.Username, req.Password, req.ConfirmPassword); err != nil {
		log.Printf("Registration error: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dtos.MessageResponse{Message: "user created successfully"})
}

// Login validates credentials and issues a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dtos.LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Printf("Login error: %v", err)
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, dtos.TokenResponseDTO{
		AccessToken: token,
		TokenType:   "bearer",
		Username:    req.Username,
	})
}

// ChangePassword updates the password of the authenticated user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.UsernameFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req dtos.ChangePasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.AuthService.ChangePassword(r.Context(), username, req.OldPassword, req.NewPassword, req.ConfirmNewPassword); err != nil {
		log.Printf("Password change error for %q: %v", username, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dtos.MessageResponse{Message: "password changed successfully"})
}
