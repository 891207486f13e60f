// Package users registers players and resolves them by name.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/ids"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
	"github.com/robalobadob/globetrotter/internal/validate"
)

type nameInput struct {
	UserName string `json:"userName" validate:"required,min=2,max=32"`
}

// joinNameInput is the looser rule for names given when joining a challenge.
type joinNameInput struct {
	UserName string `json:"userName" validate:"required,max=32"`
}

// Registration is the result of Register.
type Registration struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Service manages user accounts.
type Service struct {
	store  store.Store
	issuer *auth.Issuer
	now    func() time.Time
}

func NewService(st store.Store, issuer *auth.Issuer) *Service {
	return &Service{store: st, issuer: issuer, now: time.Now}
}

// WithStore returns a copy of s bound to st.
func (s *Service) WithStore(st store.Store) *Service {
	c := *s
	c.store = st
	return &c
}

// NormalizeName trims whitespace and validates the result.
func NormalizeName(name string) (string, error) {
	in := nameInput{UserName: strings.TrimSpace(name)}
	if err := validate.Struct(in); err != nil {
		return "", err
	}
	return in.UserName, nil
}

// Register creates a user and issues a credential for it.
func (s *Service) Register(ctx context.Context, userName string) (*Registration, error) {
	name, err := NormalizeName(userName)
	if err != nil {
		return nil, err
	}
	u := &model.User{ID: ids.New(), UserName: name, CreatedAt: s.now().UTC()}
	if err := s.store.Users().Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, "User already exists", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "Failed to register user", err)
	}

	tok, exp, err := s.issuer.Sign(u.ID, u.UserName)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to sign token", err)
	}
	log.Info().Str("user", u.ID).Str("userName", u.UserName).Msg("user registered")
	return &Registration{User: u, Token: tok, ExpiresAt: exp}, nil
}

// Profile returns the user with the given id.
func (s *Service) Profile(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.Users().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load user", err)
	}
	return u, nil
}

// FindOrCreate returns the user named userName, creating it if missing.
// Repeated calls with the same name return the same user. Any non-blank name
// up to 32 chars is accepted.
func (s *Service) FindOrCreate(ctx context.Context, userName string) (*model.User, error) {
	in := joinNameInput{UserName: strings.TrimSpace(userName)}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	name := in.UserName
	u, err := s.store.Users().GetByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load user", err)
	}

	u = &model.User{ID: ids.New(), UserName: name, CreatedAt: s.now().UTC()}
	err = s.store.Users().Create(ctx, u)
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent join under the same name
		if existing, gerr := s.store.Users().GetByName(ctx, name); gerr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}
	log.Info().Str("user", u.ID).Str("userName", u.UserName).Msg("user created on join")
	return u, nil
}
