package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/globetrotter/internal/auth"
)

type joinReq struct {
	InviteCode string `json:"inviteCode" required:"true"`
	// UserName joins as that user (created if new); omit to join anonymously.
	UserName *string `json:"userName,omitempty"`
}

func (s *Server) mountChallengeRoutes(r chi.Router) {
	r.Route("/challenge", func(r chi.Router) {
		r.With(s.requireAuth()).Post("/", s.handleCreateChallenge)
		r.Post("/join", s.handleJoinChallenge)
		r.Get("/{inviteCode}", s.handleGetChallenge)
	})
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	me := auth.FromContext(r.Context())
	c, err := s.challenges.Create(r.Context(), me.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, c, "Challenge created successfully")
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	sum, err := s.challenges.Get(r.Context(), chi.URLParam(r, "inviteCode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.challenges.Join(r.Context(), req.InviteCode, req.UserName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, c, "Joined challenge successfully")
}
