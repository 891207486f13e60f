package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/model"
)

type registerReq struct {
	UserName string `json:"userName" required:"true" minLength:"2" maxLength:"32"`
}

type registerRes struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (s *Server) mountUserRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.With(s.requireAuth()).Get("/me", s.handleMe)
	})
}

// handleRegister creates a user, returns the token and sets the auth cookie.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.users.Register(r.Context(), req.UserName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setAuthCookie(w, reg.Token, reg.ExpiresAt)
	writeMessage(w, http.StatusCreated, registerRes{User: reg.User, Token: reg.Token, ExpiresAt: reg.ExpiresAt}, "User registered successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeData(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me := auth.FromContext(r.Context())
	u, err := s.users.Profile(r.Context(), me.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}
