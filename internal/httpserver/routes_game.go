package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/globetrotter/internal/auth"
)

type answerReq struct {
	GameSessionID string `json:"gameSessionId" required:"true"`
	// Answer is the id of the chosen destination option.
	Answer string `json:"answer" required:"true"`
}

func (s *Server) mountGameRoutes(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.With(s.withOptionalAuth()).Post("/session", s.handleCreateSession)
		r.Get("/session/{id}/clues", s.handleClues)
		r.With(s.withOptionalAuth()).Get("/session/{id}", s.handleGetSession)
		r.With(s.withOptionalAuth()).Post("/answer", s.handleAnswer)
		r.With(s.requireAuth()).Get("/sessions/mine", s.handleMySessions)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// handleCreateSession starts a session owned by the caller, or an anonymous
// one for guests.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var owner *string
	if me := auth.FromContext(r.Context()); me != nil {
		owner = &me.UserID
	}
	sess, err := s.games.CreateSession(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sess)
}

func (s *Server) handleClues(w http.ResponseWriter, r *http.Request) {
	c, err := s.games.Clues(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.games.Session(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.games.SubmitAnswer(r.Context(), req.GameSessionID, req.Answer, auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleMySessions(w http.ResponseWriter, r *http.Request) {
	me := auth.FromContext(r.Context())
	out, err := s.games.History(r.Context(), me.UserID, queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	out, err := s.games.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// queryInt reads an integer query parameter; absent or malformed values are 0.
func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
