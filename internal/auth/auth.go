// internal/auth/auth.go
//
// Identity tokens for registered players.
// Responsibilities:
//   - Issuer signs and parses HS256 JWTs carrying the user id and name.
//   - Verifier resolves a raw token to an Identity and checks that the user
//     still exists.
//   - Context helpers carry the resolved Identity through a request.

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified caller of a request.
type Identity struct {
	UserID   string `json:"id"`
	UserName string `json:"userName"`
}

// Issuer signs and parses tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer whose tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign creates a token for the user and reports its expiry.
func (i *Issuer) Sign(userID, userName string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       userID,
		"username": userName,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString(i.secret)
	return ss, exp, err
}

// Parse validates the signature and expiry and returns the embedded identity.
func (i *Issuer) Parse(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	name, _ := claims["username"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: id, UserName: name}, nil
}

// UserGetter is the slice of the user repository the verifier needs.
type UserGetter interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// Verifier turns bearer tokens into identities of existing users.
type Verifier struct {
	issuer *Issuer
	users  UserGetter
}

func NewVerifier(issuer *Issuer, users UserGetter) *Verifier {
	return &Verifier{issuer: issuer, users: users}
}

// Verify fails with apperr.Unauthenticated on any invalid token or when the
// user no longer exists. Storage failures are apperr.Internal.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	id, err := v.issuer.Parse(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "Invalid token", err)
	}
	u, err := v.users.Get(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.Unauthenticated, "Invalid token", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load user", err)
	}
	return &Identity{UserID: u.ID, UserName: u.UserName}, nil
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil for guests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}
