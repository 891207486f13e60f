package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/globetrotter/internal/catalog"
	"github.com/robalobadob/globetrotter/internal/model"
)

func (s *Server) mountDestinationRoutes(r chi.Router) {
	r.Route("/destinations", func(r chi.Router) {
		r.Get("/", s.handleGetDestination)
		r.Post("/", s.handleCreateDestination)
		r.Get("/random", s.handleRandomDestination)
		r.Get("/daily", s.handleDailyDestination)
		r.Post("/bulk", s.handleBulkDestinations)
		r.Get("/{id}", s.handleGetDestination)
		r.With(s.requireAuth()).Patch("/{id}", s.handleUpdateDestination)
	})
}

// handleGetDestination serves both /destinations?id= and /destinations/{id}.
func (s *Server) handleGetDestination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	d, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (s *Server) handleRandomDestination(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.Random(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

type dailyRes struct {
	Date        string             `json:"date"`
	Destination *model.Destination `json:"destination"`
}

func (s *Server) handleDailyDestination(w http.ResponseWriter, r *http.Request) {
	d, date, err := s.catalog.Daily(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, dailyRes{Date: date, Destination: d})
}

func (s *Server) handleCreateDestination(w http.ResponseWriter, r *http.Request) {
	var in catalog.Input
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, d, "Destination created successfully")
}

// bulkReq accepts {"destinations": [...]} as well as a bare array.
type bulkReq struct {
	Destinations []catalog.Input `json:"destinations"`
}

func (b *bulkReq) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &b.Destinations)
	}
	type plain bulkReq
	return json.Unmarshal(data, (*plain)(b))
}

func (s *Server) handleBulkDestinations(w http.ResponseWriter, r *http.Request) {
	var in bulkReq
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.catalog.BulkCreate(r.Context(), in.Destinations)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, res, res.Message)
}

func (s *Server) handleUpdateDestination(w http.ResponseWriter, r *http.Request) {
	var p catalog.Patch
	if err := readJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.catalog.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, d, "Destination updated successfully")
}
