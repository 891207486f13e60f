// internal/httpserver/server.go
//
// HTTP server wiring for the Globetrotter backend.
// Responsibilities:
//   - Router + middleware (request IDs, access log, panic recovery, timeouts,
//     JSON, CORS, Prometheus).
//   - Public endpoints: "/", "/health", "/metrics", "/openapi.json", "/docs".
//   - Users: /user/register, /user/me (require auth).
//   - Destinations: /destinations/* (updates require auth).
//   - Game: /game/* (session create, read and answer use optional auth).
//   - Challenges: /challenge/* (creation requires auth).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth lets guests through but rejects a presented bad token.

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/swaggest/swgui/v5emb"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/catalog"
	"github.com/robalobadob/globetrotter/internal/challenge"
	"github.com/robalobadob/globetrotter/internal/game"
	"github.com/robalobadob/globetrotter/internal/metrics"
	"github.com/robalobadob/globetrotter/internal/users"
)

// Config carries the HTTP-facing settings.
type Config struct {
	Addr           string
	ClientOrigin   string
	CookieName     string
	CookieSecure   bool
	RequestTimeout time.Duration
}

// Deps are the services the handlers call into.
type Deps struct {
	Catalog    *catalog.Service
	Users      *users.Service
	Games      *game.Engine
	Challenges *challenge.Engine
	Verifier   *auth.Verifier
	Metrics    *metrics.Metrics
	Checks     map[string]Checker
}

// Server bundles the router and its services.
type Server struct {
	r   *chi.Mux
	srv *http.Server
	cfg Config

	catalog    *catalog.Service
	users      *users.Service
	games      *game.Engine
	challenges *challenge.Engine
	verifier   *auth.Verifier
	metrics    *metrics.Metrics
	checks     map[string]Checker
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg Config, d Deps) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "globetrotter_token"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	s := &Server{
		r:          chi.NewRouter(),
		cfg:        cfg,
		catalog:    d.Catalog,
		users:      d.Users,
		games:      d.Games,
		challenges: d.Challenges,
		verifier:   d.Verifier,
		metrics:    d.Metrics,
		checks:     d.Checks,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(s.metrics.Middleware)
	s.r.Use(s.cors)

	// Non-JSON surfaces keep their own content types.
	s.r.Handle("/metrics", s.metrics.Handler())
	s.r.Mount("/docs", v5emb.New("Globetrotter API", "/openapi.json", "/docs"))

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeData(w, http.StatusOK, map[string]any{
				"service":   "globetrotter",
				"endpoints": []string{"/health", "/docs", "/user/*", "/destinations/*", "/game/*", "/challenge/*"},
			})
		})
		r.Get("/health", handleHealth(s.checks))
		r.Get("/openapi.json", handleOpenAPI())

		s.mountUserRoutes(r)
		s.mountDestinationRoutes(r)
		s.mountGameRoutes(r)
		s.mountChallengeRoutes(r)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.New(apperr.NotFound, "Route not found: "+r.URL.Path))
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Message: "Method not allowed"})
	})

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Run serves until Shutdown is called.
func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests for up to ten seconds.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// ----------------------------- middleware ----------------------------------

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
