package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/homzhub/ticket-engine/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("failed to lookup user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	// same response for unknown email and wrong password
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}

	token, err := auth.SignJWT(s.jwtSecret, user.ID, string(user.Role), s.tokenTTL)
	if err != nil {
		slog.Error("failed to sign token", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	respondJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return
	}

	if principal.Kind != "user" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"kind":        principal.Kind,
			"subject":     principal.Subject,
			"permissions": principal.Permissions,
		})
		return
	}

	user, err := s.repo.GetUser(r.Context(), principal.UserID)
	if err != nil || user == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
