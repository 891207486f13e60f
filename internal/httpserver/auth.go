// internal/httpserver/auth.go
//
// Identity middleware and cookie helpers.
//   - withOptionalAuth: guests pass through; a presented token must be valid.
//   - requireAuth: a valid token for an existing user is mandatory.
//   - Tokens come from "Authorization: Bearer" or the auth cookie.

package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/auth"
)

func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := s.bearerOrCookie(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := s.verifier.Verify(r.Context(), tok)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := s.bearerOrCookie(r)
			if tok == "" {
				writeError(w, r, apperr.New(apperr.Unauthenticated, "Unauthorized"))
				return
			}
			id, err := s.verifier.Verify(r.Context(), tok)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// bearerOrCookie extracts a token from the Authorization header or the auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, s.authCookie(token, exp, 0))
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.authCookie("", time.Time{}, -1))
}

func (s *Server) authCookie(value string, exp time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.cfg.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	}
}
