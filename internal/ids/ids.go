// Package ids generates entity identifiers and shareable codes.
package ids

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string, falling back to v4 if the
// clock source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Code returns an n-char URL-safe crypto-random string (no padding).
func Code(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, (n*3+3)/4)
	_, _ = rand.Read(b)
	s := base64.RawURLEncoding.EncodeToString(b)
	return s[:n]
}
