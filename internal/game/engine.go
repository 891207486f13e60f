// internal/game/engine.go
//
// Game session engine: one session is one destination to guess.
// Responsibilities:
//   - Create sessions bound to a uniformly sampled destination.
//   - Serve a random clue subset and shuffled multiple-choice options.
//   - Apply answers: score on the first correct answer, fail after
//     MaxWrongAnswers wrong ones.
//   - Enforce ownership on reads and answers of owned sessions.
//
// State transitions (the only ones allowed):
//   - in_progress → completed: correct answer (score+1).
//   - in_progress → failed:    wrongAnswers reaches maxWrongAnswers.
// Finished sessions reject further answers.

package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/ids"
	"github.com/robalobadob/globetrotter/internal/metrics"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
)

const (
	DefaultMaxWrongAnswers = 3
	// otherOptions is how many wrong destinations accompany the correct one.
	otherOptions = 3
	maxCluesShown = 2
)

// Randomizer is the randomness source. *rand.Rand from math/rand/v2
// satisfies it; the default uses the concurrency-safe global source.
type Randomizer interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	MaxWrongAnswers int
	Rand            Randomizer
	Now             func() time.Time
	Metrics         *metrics.Metrics
}

// Engine runs game sessions against a Store.
type Engine struct {
	store    store.Store
	rnd      Randomizer
	now      func() time.Time
	maxWrong int
	metrics  *metrics.Metrics
}

// NewEngine constructs an Engine.
func NewEngine(st store.Store, cfg Config) *Engine {
	e := &Engine{store: st, rnd: cfg.Rand, now: cfg.Now, maxWrong: cfg.MaxWrongAnswers, metrics: cfg.Metrics}
	if e.rnd == nil {
		e.rnd = globalRand{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.maxWrong <= 0 {
		e.maxWrong = DefaultMaxWrongAnswers
	}
	return e
}

// WithStore returns a copy of e bound to st, typically a transactional view.
func (e *Engine) WithStore(st store.Store) *Engine {
	c := *e
	c.store = st
	return &c
}

// CreateSession starts a session for owner (nil for anonymous play) on a
// uniformly sampled destination.
func (e *Engine) CreateSession(ctx context.Context, owner *string) (*model.GameSession, error) {
	dest, err := e.store.Destinations().Sample(ctx, e.rnd.IntN)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NoContent, "No destinations available")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to create game session", err)
	}

	s := &model.GameSession{
		ID:              ids.New(),
		UserID:          owner,
		DestinationID:   dest.ID,
		MaxWrongAnswers: e.maxWrong,
		Status:          model.StatusInProgress,
		StartTime:       e.now().UTC(),
	}
	if err := e.store.Sessions().Create(ctx, s); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "Failed to create game session", err)
	}
	s.Destination = dest
	e.metrics.SessionCreated()
	log.Debug().Str("session", s.ID).Str("destination", dest.ID).Bool("anonymous", owner == nil).Msg("game session created")
	return s, nil
}

// Clues returns up to two distinct clues and the shuffled options for a
// session. Destinations without clues yield an empty clue list.
func (e *Engine) Clues(ctx context.Context, sessionID string) (*Clues, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dest := s.Destination

	want := min(len(dest.Clues), 1+e.rnd.IntN(maxCluesShown))
	clues := make([]string, 0, want)
	for _, i := range e.pick(len(dest.Clues), want) {
		clues = append(clues, dest.Clues[i])
	}

	others, err := e.store.Destinations().Others(ctx, dest.ID, otherOptions)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load answer options", err)
	}
	opts := make([]Option, 0, len(others)+1)
	opts = append(opts, Option{ID: dest.ID, Name: dest.Name()})
	for i := range others {
		opts = append(opts, Option{ID: others[i].ID, Name: others[i].Name()})
	}
	e.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	return &Clues{SessionID: s.ID, Clues: clues, PossibleAnswers: opts}, nil
}

// SubmitAnswer applies one answer. A finished session reports its status
// first; otherwise caller, when present, must own the session if it is owned.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, answerID string, caller *auth.Identity) (*AnswerResult, error) {
	if sessionID == "" || answerID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "gameSessionId and answer are required")
	}
	now := e.now().UTC()

	var correct bool
	s, err := e.store.Sessions().Update(ctx, sessionID, func(s *model.GameSession) error {
		switch s.Status {
		case model.StatusInProgress:
		case model.StatusCompleted, model.StatusFailed:
			return apperr.New(apperr.Conflict, "Game is "+string(s.Status))
		default:
			return apperr.New(apperr.Internal, "unknown session status "+string(s.Status))
		}
		if caller != nil && s.UserID != nil && !s.OwnedBy(caller.UserID) {
			return apperr.New(apperr.Unauthorized, "Unauthorized access to game session")
		}

		correct = answerID == s.DestinationID
		if correct {
			s.Score++
			s.Status = model.StatusCompleted
			s.EndTime = &now
			return nil
		}
		s.WrongAnswers++
		if s.WrongAnswers >= s.MaxWrongAnswers {
			s.Status = model.StatusFailed
			s.EndTime = &now
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.Wrap(apperr.NotFound, "Game session not found", err)
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.Wrap(apperr.Conflict, "Game session was updated concurrently", err)
	case err != nil:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.Internal, "Failed to submit answer", err)
	}

	res := &AnswerResult{
		Correct:       correct,
		Score:         s.Score,
		WrongAnswers:  s.WrongAnswers,
		GameCompleted: s.Status.Finished(),
		Status:        string(s.Status),
	}
	switch s.Status {
	case model.StatusCompleted:
		res.Feedback = e.feedback(s.Destination)
	case model.StatusFailed:
		if s.Destination != nil {
			res.CorrectAnswer = s.Destination.Name()
		}
	case model.StatusInProgress:
	}

	e.metrics.AnswerSubmitted(correct)
	if res.GameCompleted {
		e.metrics.GameFinished(string(s.Status))
	}
	log.Debug().Str("session", s.ID).Bool("correct", correct).Str("status", string(s.Status)).Msg("answer submitted")
	return res, nil
}

// Session returns a session with its destination. requester, when present,
// must own the session if it is owned.
func (e *Engine) Session(ctx context.Context, id string, requester *auth.Identity) (*model.GameSession, error) {
	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if requester != nil && s.UserID != nil && !s.OwnedBy(requester.UserID) {
		return nil, apperr.New(apperr.Unauthorized, "Unauthorized access to game session")
	}
	return s, nil
}

// History lists the user's most recent sessions.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]model.GameSession, error) {
	out, err := e.store.Sessions().ListByUser(ctx, userID, clamp(limit, 20, 50))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load game history", err)
	}
	return out, nil
}

// Leaderboard ranks users by completed sessions.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	out, err := e.store.Sessions().Leaderboard(ctx, clamp(limit, 20, 100))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load leaderboard", err)
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, id string) (*model.GameSession, error) {
	s, err := e.store.Sessions().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "Game session not found", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load game session", err)
	}
	return s, nil
}

// pick returns k distinct indices from [0, n) via a partial Fisher-Yates.
func (e *Engine) pick(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + e.rnd.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, e.rnd.IntN(i+1))
	}
}

// feedback picks a fun fact or a trivia item with even odds, falling back to
// the other list when the chosen one is empty.
func (e *Engine) feedback(d *model.Destination) string {
	if d == nil {
		return ""
	}
	first, second := d.FunFacts, d.Trivia
	if e.rnd.IntN(2) == 1 {
		first, second = second, first
	}
	for _, list := range [][]string{first, second} {
		if len(list) > 0 {
			return list[e.rnd.IntN(len(list))]
		}
	}
	return ""
}

func clamp(v, def, hi int) int {
	if v <= 0 {
		return def
	}
	return min(v, hi)
}
