// internal/store/sqlite.go
//
// SQLite implementation of Store on top of sqlx.
//
// Notes:
//   - The same repositories run against *sqlx.DB or *sqlx.Tx through the
//     sqlx.ExtContext interface; InTx swaps one for the other.
//   - Timestamps are written as UTC time.Time and read back through the
//     TIMESTAMP column affinity of mattn/go-sqlite3.
//   - Session updates are guarded on the previous status so a lost race
//     surfaces as ErrConflict instead of a silent overwrite.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/robalobadob/globetrotter/internal/model"
)

// SQLite is the sqlx-backed Store.
type SQLite struct {
	db *sqlx.DB // nil on transactional views
	q  sqlx.ExtContext
}

// NewSQLite wraps an open, migrated database.
func NewSQLite(db *sqlx.DB) *SQLite {
	return &SQLite{db: db, q: db}
}

// InTx implements Store.
func (s *SQLite) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLite{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLite) Destinations() DestinationRepo { return sqlDestinations{s.q} }
func (s *SQLite) Users() UserRepo               { return sqlUsers{s.q} }
func (s *SQLite) Sessions() SessionRepo         { return sqlSessions{s} }
func (s *SQLite) Challenges() ChallengeRepo     { return sqlChallenges{s.q} }

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}
	return err
}

// ------------------------------ destinations -------------------------------

type sqlDestinations struct{ q sqlx.ExtContext }

const destinationCols = `id, city, country, clues, fun_facts, trivia, image_url, created_at`

func (r sqlDestinations) Create(ctx context.Context, d *model.Destination) error {
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO destinations (`+destinationCols+`)
		VALUES (:id, :city, :country, :clues, :fun_facts, :trivia, :image_url, :created_at)`, d)
	return mapErr(err)
}

func (r sqlDestinations) Get(ctx context.Context, id string) (*model.Destination, error) {
	var d model.Destination
	if err := sqlx.GetContext(ctx, r.q, &d, `SELECT `+destinationCols+` FROM destinations WHERE id = ?`, id); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r sqlDestinations) Update(ctx context.Context, d *model.Destination) error {
	res, err := sqlx.NamedExecContext(ctx, r.q, `
		UPDATE destinations
		SET city = :city, country = :country, clues = :clues, fun_facts = :fun_facts,
		    trivia = :trivia, image_url = :image_url
		WHERE id = :id`, d)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r sqlDestinations) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM destinations`); err != nil {
		return 0, err
	}
	return n, nil
}

func (r sqlDestinations) Sample(ctx context.Context, intn func(n int) int) (*model.Destination, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	var d model.Destination
	err = sqlx.GetContext(ctx, r.q, &d, `
		SELECT `+destinationCols+` FROM destinations
		ORDER BY created_at, id
		LIMIT 1 OFFSET ?`, intn(n))
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r sqlDestinations) Others(ctx context.Context, excludeID string, limit int) ([]model.Destination, error) {
	out := []model.Destination{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT `+destinationCols+` FROM destinations
		WHERE id <> ?
		ORDER BY id
		LIMIT ?`, excludeID, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --------------------------------- users -----------------------------------

type sqlUsers struct{ q sqlx.ExtContext }

func (r sqlUsers) Create(ctx context.Context, u *model.User) error {
	_, err := sqlx.NamedExecContext(ctx, r.q,
		`INSERT INTO users (id, user_name, created_at) VALUES (:id, :user_name, :created_at)`, u)
	return mapErr(err)
}

func (r sqlUsers) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, r.q, &u, `SELECT id, user_name, created_at FROM users WHERE id = ?`, id); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r sqlUsers) GetByName(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, r.q, &u, `SELECT id, user_name, created_at FROM users WHERE user_name = ?`, name); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// -------------------------------- sessions ---------------------------------

type sqlSessions struct{ s *SQLite }

// sessionRow is a session joined with its destination.
type sessionRow struct {
	model.GameSession
	Dest model.Destination `db:"dest"`
}

func (row sessionRow) session() *model.GameSession {
	s := row.GameSession
	d := row.Dest
	s.Destination = &d
	return &s
}

const sessionSelect = `
	SELECT gs.id, gs.user_id, gs.destination_id, gs.score, gs.wrong_answers,
	       gs.max_wrong_answers, gs.status, gs.start_time, gs.end_time,
	       d.id AS "dest.id", d.city AS "dest.city", d.country AS "dest.country",
	       d.clues AS "dest.clues", d.fun_facts AS "dest.fun_facts", d.trivia AS "dest.trivia",
	       d.image_url AS "dest.image_url", d.created_at AS "dest.created_at"
	FROM game_sessions gs
	JOIN destinations d ON d.id = gs.destination_id`

func (r sqlSessions) Create(ctx context.Context, gs *model.GameSession) error {
	_, err := sqlx.NamedExecContext(ctx, r.s.q, `
		INSERT INTO game_sessions
			(id, user_id, destination_id, score, wrong_answers, max_wrong_answers, status, start_time, end_time)
		VALUES
			(:id, :user_id, :destination_id, :score, :wrong_answers, :max_wrong_answers, :status, :start_time, :end_time)`, gs)
	return mapErr(err)
}

func (r sqlSessions) get(ctx context.Context, q sqlx.ExtContext, id string) (*model.GameSession, error) {
	var row sessionRow
	if err := sqlx.GetContext(ctx, q, &row, sessionSelect+` WHERE gs.id = ?`, id); err != nil {
		return nil, mapErr(err)
	}
	return row.session(), nil
}

func (r sqlSessions) Get(ctx context.Context, id string) (*model.GameSession, error) {
	return r.get(ctx, r.s.q, id)
}

func (r sqlSessions) Update(ctx context.Context, id string, fn func(s *model.GameSession) error) (*model.GameSession, error) {
	var out *model.GameSession
	err := r.s.InTx(ctx, func(tx Store) error {
		q := tx.(*SQLite).q
		cur, err := r.get(ctx, q, id)
		if err != nil {
			return err
		}
		prev := cur.Status
		if err := fn(cur); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `
			UPDATE game_sessions
			SET score = ?, wrong_answers = ?, status = ?, end_time = ?
			WHERE id = ? AND status = ?`,
			cur.Score, cur.WrongAnswers, cur.Status, cur.EndTime, id, prev)
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r sqlSessions) BestCompletedScore(ctx context.Context, userID string) (int, error) {
	var best int
	err := sqlx.GetContext(ctx, r.s.q, &best, `
		SELECT COALESCE(MAX(score), 0) FROM game_sessions
		WHERE user_id = ? AND status = ?`, userID, model.StatusCompleted)
	return best, err
}

func (r sqlSessions) ListByUser(ctx context.Context, userID string, limit int) ([]model.GameSession, error) {
	var rows []sessionRow
	err := sqlx.SelectContext(ctx, r.s.q, &rows,
		sessionSelect+` WHERE gs.user_id = ? ORDER BY gs.start_time DESC, gs.id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.GameSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.session())
	}
	return out, nil
}

func (r sqlSessions) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	out := []model.LeaderboardEntry{}
	err := sqlx.SelectContext(ctx, r.s.q, &out, `
		SELECT u.id AS user_id, u.user_name, COUNT(*) AS completed, MAX(gs.score) AS best_score
		FROM game_sessions gs
		JOIN users u ON u.id = gs.user_id
		WHERE gs.status = ?
		GROUP BY u.id, u.user_name
		ORDER BY completed DESC, best_score DESC, u.user_name ASC
		LIMIT ?`, model.StatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ------------------------------- challenges --------------------------------

type sqlChallenges struct{ q sqlx.ExtContext }

func (r sqlChallenges) Create(ctx context.Context, c *model.ChallengeSession, inv *model.ChallengeInvite) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO challenge_sessions (id, owner_id, status, end_time, created_at)
		VALUES (:id, :owner_id, :status, :end_time, :created_at)`, c); err != nil {
		return mapErr(err)
	}
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO challenge_invites (id, challenge_session_id, invite_code, expires_at, owner_score, created_at)
		VALUES (:id, :challenge_session_id, :invite_code, :expires_at, :owner_score, :created_at)`, inv)
	return mapErr(err)
}

func (r sqlChallenges) InviteByCode(ctx context.Context, code string) (*model.InviteDetails, error) {
	var d model.InviteDetails
	err := sqlx.GetContext(ctx, r.q, &d, `
		SELECT ci.id AS "invite.id", ci.challenge_session_id AS "invite.challenge_session_id",
		       ci.invite_code AS "invite.invite_code", ci.expires_at AS "invite.expires_at",
		       ci.owner_score AS "invite.owner_score", ci.created_at AS "invite.created_at",
		       cs.id AS "challenge.id", cs.owner_id AS "challenge.owner_id", cs.status AS "challenge.status",
		       cs.end_time AS "challenge.end_time", cs.created_at AS "challenge.created_at",
		       u.id AS "owner.id", u.user_name AS "owner.user_name", u.created_at AS "owner.created_at"
		FROM challenge_invites ci
		JOIN challenge_sessions cs ON cs.id = ci.challenge_session_id
		JOIN users u ON u.id = cs.owner_id
		WHERE ci.invite_code = ?`, code)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r sqlChallenges) AddParticipant(ctx context.Context, p *model.ChallengeParticipant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO challenge_participants (id, challenge_session_id, user_id, temporary_id, joined_at)
		VALUES (:id, :challenge_session_id, :user_id, :temporary_id, :joined_at)`, p)
	return mapErr(err)
}

func (r sqlChallenges) Participants(ctx context.Context, challengeID string) ([]model.ChallengeParticipant, error) {
	out := []model.ChallengeParticipant{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT id, challenge_session_id, user_id, temporary_id, joined_at
		FROM challenge_participants
		WHERE challenge_session_id = ?
		ORDER BY joined_at, id`, challengeID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
