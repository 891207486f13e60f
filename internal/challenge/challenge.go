// internal/challenge/challenge.go
//
// Challenge engine: a registered owner shares an invite code, anyone
// holding the code can join and gets a fresh game session.
// Responsibilities:
//   - Create a challenge with a unique invite code and a frozen owner score.
//   - Resolve invite codes (read-through cache) and reject expired ones.
//   - Join: register or reuse the named user (or mint a temporary id), record
//     the participant and start a game session, all in one transaction.

package challenge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/game"
	"github.com/robalobadob/globetrotter/internal/ids"
	"github.com/robalobadob/globetrotter/internal/metrics"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
	"github.com/robalobadob/globetrotter/internal/users"
)

const (
	DefaultInviteTTL  = 7 * 24 * time.Hour
	DefaultCodeLength = 10

	maxCodeAttempts = 5
	tempIDLength    = 16
)

// Cache stores immutable invite details keyed by code. Get errors, misses
// included, fall through to the store.
type Cache interface {
	Get(ctx context.Context, code string) (*model.InviteDetails, error)
	Set(ctx context.Context, d *model.InviteDetails, ttl time.Duration) error
}

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	InviteTTL  time.Duration
	CodeLength int
	// LinkBase is prefixed to the code to form the invite link. Empty means
	// the link is the bare code.
	LinkBase string
	Cache    Cache
	Now      func() time.Time
	NewCode  func(n int) string
	Metrics  *metrics.Metrics
}

// Owner is the public view of a challenge owner.
type Owner struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

// Challenge is returned by Create and Join.
type Challenge struct {
	ID          string             `json:"id"`
	InviteCode  string             `json:"inviteCode"`
	InviteLink  string             `json:"inviteLink"`
	OwnerScore  int                `json:"ownerScore"`
	Owner       Owner              `json:"owner"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	GameSession *model.GameSession `json:"gameSession,omitempty"`
	// TemporaryID identifies an anonymous joiner.
	TemporaryID string `json:"temporaryId,omitempty"`
}

// InviteSummary is the public view of an invite code.
type InviteSummary struct {
	InviteCode string    `json:"inviteCode"`
	OwnerName  string    `json:"ownerName"`
	OwnerScore int       `json:"ownerScore"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Engine struct {
	store    store.Store
	games    *game.Engine
	users    *users.Service
	cache    Cache
	now      func() time.Time
	newCode  func(n int) string
	ttl      time.Duration
	codeLen  int
	linkBase string
	metrics  *metrics.Metrics
}

func NewEngine(st store.Store, games *game.Engine, us *users.Service, cfg Config) *Engine {
	e := &Engine{
		store:    st,
		games:    games,
		users:    us,
		cache:    cfg.Cache,
		now:      cfg.Now,
		newCode:  cfg.NewCode,
		ttl:      cfg.InviteTTL,
		codeLen:  cfg.CodeLength,
		linkBase: cfg.LinkBase,
		metrics:  cfg.Metrics,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newCode == nil {
		e.newCode = ids.Code
	}
	if e.ttl <= 0 {
		e.ttl = DefaultInviteTTL
	}
	if e.codeLen <= 0 {
		e.codeLen = DefaultCodeLength
	}
	return e
}

// Create issues a challenge owned by ownerID. The owner's best completed
// score is captured now and never updated.
func (e *Engine) Create(ctx context.Context, ownerID string) (*Challenge, error) {
	now := e.now().UTC()
	expires := now.Add(e.ttl)

	var d model.InviteDetails
	err := e.store.InTx(ctx, func(tx store.Store) error {
		owner, err := tx.Users().Get(ctx, ownerID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		if err != nil {
			return err
		}
		best, err := tx.Sessions().BestCompletedScore(ctx, ownerID)
		if err != nil {
			return err
		}
		code, err := e.freeCode(ctx, tx)
		if err != nil {
			return err
		}

		d = model.InviteDetails{
			Challenge: model.ChallengeSession{
				ID:        ids.New(),
				OwnerID:   owner.ID,
				Status:    model.StatusInProgress,
				EndTime:   expires,
				CreatedAt: now,
			},
			Owner: *owner,
		}
		d.Invite = model.ChallengeInvite{
			ID:                 ids.New(),
			ChallengeSessionID: d.Challenge.ID,
			Code:               code,
			ExpiresAt:          expires,
			OwnerScore:         best,
			CreatedAt:          now,
		}
		return tx.Challenges().Create(ctx, &d.Challenge, &d.Invite)
	})
	if err != nil {
		return nil, wrap(err, "Failed to create challenge")
	}

	e.remember(ctx, &d)
	e.metrics.ChallengeCreated()
	log.Info().Str("challenge", d.Challenge.ID).Str("owner", ownerID).Int("ownerScore", d.Invite.OwnerScore).Msg("challenge created")
	return e.view(&d), nil
}

// Get resolves an invite code.
func (e *Engine) Get(ctx context.Context, code string) (*InviteSummary, error) {
	d, err := e.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return &InviteSummary{
		InviteCode: d.Invite.Code,
		OwnerName:  d.Owner.UserName,
		OwnerScore: d.Invite.OwnerScore,
		ExpiresAt:  d.Invite.ExpiresAt,
	}, nil
}

// Join records a participant and starts their game session. A non-blank
// userName joins as that registered user, creating it if needed; otherwise
// the participant gets a temporary id and plays anonymously.
func (e *Engine) Join(ctx context.Context, code string, userName *string) (*Challenge, error) {
	d, err := e.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	named := userName != nil && strings.TrimSpace(*userName) != ""

	out := e.view(d)
	err = e.store.InTx(ctx, func(tx store.Store) error {
		p := &model.ChallengeParticipant{
			ID:                 ids.New(),
			ChallengeSessionID: d.Challenge.ID,
			JoinedAt:           e.now().UTC(),
		}
		if named {
			u, err := e.users.WithStore(tx).FindOrCreate(ctx, *userName)
			if err != nil {
				return err
			}
			p.UserID = &u.ID
		} else {
			tmp := ids.Code(tempIDLength)
			p.TemporaryID = &tmp
			out.TemporaryID = tmp
		}
		if err := tx.Challenges().AddParticipant(ctx, p); err != nil {
			return err
		}

		sess, err := e.games.WithStore(tx).CreateSession(ctx, p.UserID)
		if err != nil {
			return err
		}
		out.GameSession = sess
		return nil
	})
	if err != nil {
		return nil, wrap(err, "Failed to join challenge")
	}

	e.metrics.ChallengeJoined(!named)
	log.Info().Str("challenge", d.Challenge.ID).Bool("anonymous", !named).Str("session", out.GameSession.ID).Msg("challenge joined")
	return out, nil
}

// freeCode draws codes until one is unused. Callers hold a write
// transaction, so the code stays free until they insert it.
func (e *Engine) freeCode(ctx context.Context, tx store.Store) (string, error) {
	for range maxCodeAttempts {
		code := e.newCode(e.codeLen)
		_, err := tx.Challenges().InviteByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		log.Warn().Msg("invite code collision, retrying")
	}
	return "", apperr.New(apperr.Internal, "Could not allocate an invite code")
}

func (e *Engine) resolve(ctx context.Context, code string) (*model.InviteDetails, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.New(apperr.InvalidArgument, "inviteCode is required")
	}

	d := e.cached(ctx, code)
	if d == nil {
		var err error
		d, err = e.store.Challenges().InviteByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "Challenge not found", err)
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "Failed to load challenge", err)
		}
		e.remember(ctx, d)
	}

	if d.Invite.Expired(e.now()) {
		return nil, apperr.New(apperr.Expired, "Challenge has expired")
	}
	return d, nil
}

func (e *Engine) cached(ctx context.Context, code string) *model.InviteDetails {
	if e.cache == nil {
		return nil
	}
	d, err := e.cache.Get(ctx, code)
	if err != nil {
		log.Debug().Err(err).Str("code", code).Msg("invite cache miss")
		return nil
	}
	return d
}

func (e *Engine) remember(ctx context.Context, d *model.InviteDetails) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, d, d.Invite.ExpiresAt.Sub(e.now())); err != nil {
		log.Warn().Err(err).Msg("invite cache write failed")
	}
}

func (e *Engine) view(d *model.InviteDetails) *Challenge {
	return &Challenge{
		ID:         d.Challenge.ID,
		InviteCode: d.Invite.Code,
		InviteLink: e.linkBase + d.Invite.Code,
		OwnerScore: d.Invite.OwnerScore,
		Owner:      Owner{ID: d.Owner.ID, UserName: d.Owner.UserName},
		CreatedAt:  d.Challenge.CreatedAt,
		ExpiresAt:  d.Invite.ExpiresAt,
	}
}

// wrap keeps domain errors as they are and hides everything else behind msg.
func wrap(err error, msg string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Internal, msg, err)
}
