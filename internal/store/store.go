// internal/store/store.go
//
// Persistence contracts, one repository per entity.
// Implementations:
//   - memory.go: map-backed, concurrency-safe, for tests and STORE=memory.
//   - sqlite.go: sqlx over mattn/go-sqlite3, the production store.
//
// Notes:
//   - Repositories report missing rows as ErrNotFound and unique-key clashes
//     as ErrDuplicate; engines translate these into domain errors.
//   - InTx gives a transactional view of every repository. Nested InTx calls
//     join the outer transaction.

package store

import (
	"context"
	"errors"

	"github.com/robalobadob/globetrotter/internal/model"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrConflict means a guarded update lost a race with another writer.
	ErrConflict = errors.New("store: concurrent update")
)

// Store groups the entity repositories.
type Store interface {
	Destinations() DestinationRepo
	Users() UserRepo
	Sessions() SessionRepo
	Challenges() ChallengeRepo

	// InTx runs fn against a transactional view of the store. A non-nil
	// error from fn discards every write made through tx.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// DestinationRepo persists the destination catalog.
type DestinationRepo interface {
	Create(ctx context.Context, d *model.Destination) error
	Get(ctx context.Context, id string) (*model.Destination, error)
	Update(ctx context.Context, d *model.Destination) error
	Count(ctx context.Context) (int, error)

	// Sample draws one destination uniformly over the whole catalog: intn
	// receives the row count and must return an index in [0, count).
	// Returns ErrNotFound when the catalog is empty.
	Sample(ctx context.Context, intn func(n int) int) (*model.Destination, error)

	// Others lists up to limit destinations other than excludeID, ordered by id.
	Others(ctx context.Context, excludeID string, limit int) ([]model.Destination, error)
}

// UserRepo persists registered users. Names are unique.
type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByName(ctx context.Context, name string) (*model.User, error)
}

// SessionRepo persists game sessions. Reads resolve the bound destination.
type SessionRepo interface {
	Create(ctx context.Context, s *model.GameSession) error
	Get(ctx context.Context, id string) (*model.GameSession, error)

	// Update loads the session, applies fn and writes the result back while
	// holding the session exclusively. If fn returns an error nothing is
	// written and that error is returned.
	Update(ctx context.Context, id string, fn func(s *model.GameSession) error) (*model.GameSession, error)

	// BestCompletedScore is the highest score among the user's completed
	// sessions, or 0.
	BestCompletedScore(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.GameSession, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// ChallengeRepo persists challenges, their invites and participants.
type ChallengeRepo interface {
	// Create inserts the challenge and its invite together. ErrDuplicate
	// means the invite code is taken.
	Create(ctx context.Context, c *model.ChallengeSession, inv *model.ChallengeInvite) error
	InviteByCode(ctx context.Context, code string) (*model.InviteDetails, error)
	AddParticipant(ctx context.Context, p *model.ChallengeParticipant) error
	Participants(ctx context.Context, challengeID string) ([]model.ChallengeParticipant, error)
}
