// internal/httpserver/json.go
//
// Response envelope and JSON helpers.
// Every body is { success, data?, message? }. Domain errors carry their own
// message; internal errors are logged and answered generically.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/internal/apperr"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: msg})
}

// writeError maps err to its HTTP status and writes a failure envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	k := apperr.KindOf(err)
	if k == apperr.Internal {
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}
	writeJSON(w, k.HTTPStatus(), envelope{Success: false, Message: apperr.Message(err)})
}

// readJSON decodes a size-limited JSON body into v. An empty body leaves v
// untouched.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.InvalidArgument, "Invalid JSON body", err)
	}
	return nil
}
