package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sqltutor/internal/api/v1/dto"
	"sqltutor/internal/middleware"
	"sqltutor/internal/model"
	"sqltutor/internal/service"

	"github.com/rs/zerolog"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authSvc service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// RegisterRoutes mounts the auth routes
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.HandleFunc("/auth/google", h.googleLogin)
	mux.Handle("/auth/logout", authMw(http.HandlerFunc(h.logout)))
	mux.Handle("/auth/me", authMw(http.HandlerFunc(h.me)))
}

func userResponse(u *model.User) dto.UserResponseDTO {
	resp := dto.UserResponseDTO{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Points:      u.Points,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
	if u.PhotoURL != nil {
		resp.PhotoURL = *u.PhotoURL
	}
	return resp
}

func (h *AuthHandler) googleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.GoogleLoginDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.IDToken == "" && req.AccessToken == "" {
		http.Error(w, "id_token or access_token is required", http.StatusBadRequest)
		return
	}

	user, token, err := h.authSvc.LoginWithGoogle(r.Context(), req.IDToken, req.AccessToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, "Invalid Google credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Msg("Google login failed")
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	resp := dto.LoginResponseDTO{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userResponse(user),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	if err := h.authSvc.Logout(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Logout failed")
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	user, err := h.authSvc.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user")
		http.Error(w, "Failed to fetch user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}
