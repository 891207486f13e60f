package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type checkResult struct {
	Status string `json:"status"`
}

// HealthResponse maps each dependency to its check result.
type HealthResponse map[string]checkResult

func handleHealth(checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(HealthResponse, len(checks))
		status := http.StatusOK
		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				log.Error().Err(err).Str("name", name).Msg("health check failed")
				results[name] = checkResult{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = checkResult{Status: "ok"}
		}

		writeJSON(w, status, envelope{Success: status == http.StatusOK, Data: results})
	}
}
