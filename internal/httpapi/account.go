package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	sess, err := s.Auth.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sess)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	default:
		slog.Error("api: sign in", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
	}
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token != "" {
		if err := s.Auth.SignOut(r.Context(), token); err != nil {
			slog.Warn("api: sign out", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
