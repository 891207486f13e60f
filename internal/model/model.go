// internal/model/model.go
//
// Core entities shared by the engines and the storage layer.
// Defines:
//   - Status: closed lifecycle enum for game and challenge sessions.
//   - Destination, User, GameSession: the single-player game.
//   - ChallengeSession, ChallengeInvite, ChallengeParticipant: shareable challenges.
//
// Struct tags serve both the JSON API (`json`) and sqlx row mapping (`db`).

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a game (or challenge) session.
//   - "in_progress": accepting answers.
//   - "completed":   finished with a correct answer.
//   - "failed":      finished after reaching the wrong-answer limit.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusInProgress:
		return false
	}
	return false
}

// StringList is a list of strings persisted as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("model: cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("model: decode string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Destination is a guessable place with its clue material.
type Destination struct {
	ID        string     `json:"id" db:"id"`
	City      string     `json:"city" db:"city"`
	Country   string     `json:"country" db:"country"`
	Clues     StringList `json:"clues" db:"clues"`
	FunFacts  StringList `json:"funFact" db:"fun_facts"`
	Trivia    StringList `json:"trivia" db:"trivia"`
	ImageURL  *string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// Name is the "City, Country" label shown as an answer option.
func (d *Destination) Name() string {
	return d.City + ", " + d.Country
}

// User is a registered player, identified by a unique display name.
type User struct {
	ID        string    `json:"id" db:"id"`
	UserName  string    `json:"userName" db:"user_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// GameSession is one round of play bound to exactly one destination.
// UserID is nil for anonymous play.
type GameSession struct {
	ID              string       `json:"id" db:"id"`
	UserID          *string      `json:"userId,omitempty" db:"user_id"`
	DestinationID   string       `json:"destinationId" db:"destination_id"`
	Destination     *Destination `json:"destination,omitempty" db:"-"`
	Score           int          `json:"score" db:"score"`
	WrongAnswers    int          `json:"wrongAnswers" db:"wrong_answers"`
	MaxWrongAnswers int          `json:"maxWrongAnswers" db:"max_wrong_answers"`
	Status          Status       `json:"status" db:"status"`
	StartTime       time.Time    `json:"startTime" db:"start_time"`
	EndTime         *time.Time   `json:"endTime,omitempty" db:"end_time"`
}

// OwnedBy reports whether the session belongs to userID.
func (g *GameSession) OwnedBy(userID string) bool {
	return g.UserID != nil && *g.UserID == userID
}

// ChallengeSession is a challenge issued by a registered owner.
type ChallengeSession struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Status    Status    `json:"status" db:"status"`
	EndTime   time.Time `json:"endTime" db:"end_time"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ChallengeInvite is the shareable, immutable code for a challenge.
type ChallengeInvite struct {
	ID                 string    `json:"id" db:"id"`
	ChallengeSessionID string    `json:"challengeSessionId" db:"challenge_session_id"`
	Code               string    `json:"inviteCode" db:"invite_code"`
	ExpiresAt          time.Time `json:"expiresAt" db:"expires_at"`
	OwnerScore         int       `json:"ownerScore" db:"owner_score"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}

// Expired reports whether the invite is no longer usable at now.
func (i *ChallengeInvite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// ChallengeParticipant records one join. Exactly one of UserID and
// TemporaryID is set.
type ChallengeParticipant struct {
	ID                 string    `json:"id" db:"id"`
	ChallengeSessionID string    `json:"challengeSessionId" db:"challenge_session_id"`
	UserID             *string   `json:"userId,omitempty" db:"user_id"`
	TemporaryID        *string   `json:"temporaryId,omitempty" db:"temporary_id"`
	JoinedAt           time.Time `json:"joinedAt" db:"joined_at"`
}

// ErrParticipantIdentity is returned when a participant does not carry
// exactly one identity.
var ErrParticipantIdentity = errors.New("participant needs exactly one of user id or temporary id")

// Validate checks the exactly-one identity rule.
func (p *ChallengeParticipant) Validate() error {
	if (p.UserID == nil) == (p.TemporaryID == nil) {
		return ErrParticipantIdentity
	}
	return nil
}

// InviteDetails is the read model behind invite lookups: the invite joined
// with its challenge and owner. Every field is fixed once created.
type InviteDetails struct {
	Invite    ChallengeInvite  `json:"invite" db:"invite"`
	Challenge ChallengeSession `json:"challenge" db:"challenge"`
	Owner     User             `json:"owner" db:"owner"`
}

// LeaderboardEntry ranks a user by completed games, then best score.
type LeaderboardEntry struct {
	UserID    string `json:"userId" db:"user_id"`
	UserName  string `json:"userName" db:"user_name"`
	Completed int    `json:"completed" db:"completed"`
	BestScore int    `json:"bestScore" db:"best_score"`
}
