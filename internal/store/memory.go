// internal/store/memory.go
//
// In-memory implementation of Store.
// Used by the engine and HTTP tests, and by the server when STORE=memory.
//
// Characteristics:
//   - All entities live in maps guarded by one RWMutex.
//   - InTx runs against a copy of the data under the write lock and swaps it
//     in only when fn succeeds, so a failed transaction leaves nothing behind.
//   - Values are copied in and out; callers never alias stored state.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/robalobadob/globetrotter/internal/model"
)

type memData struct {
	destinations map[string]model.Destination
	destOrder    []string // insertion order, the sampling domain
	users        map[string]model.User
	userByName   map[string]string
	sessions     map[string]model.GameSession
	sessionOrder []string
	challenges   map[string]model.ChallengeSession
	invites      map[string]model.ChallengeInvite // keyed by code
	participants []model.ChallengeParticipant
}

func newMemData() *memData {
	return &memData{
		destinations: make(map[string]model.Destination),
		users:        make(map[string]model.User),
		userByName:   make(map[string]string),
		sessions:     make(map[string]model.GameSession),
		challenges:   make(map[string]model.ChallengeSession),
		invites:      make(map[string]model.ChallengeInvite),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		destinations: make(map[string]model.Destination, len(d.destinations)),
		destOrder:    slices.Clone(d.destOrder),
		users:        make(map[string]model.User, len(d.users)),
		userByName:   make(map[string]string, len(d.userByName)),
		sessions:     make(map[string]model.GameSession, len(d.sessions)),
		sessionOrder: slices.Clone(d.sessionOrder),
		challenges:   make(map[string]model.ChallengeSession, len(d.challenges)),
		invites:      make(map[string]model.ChallengeInvite, len(d.invites)),
		participants: slices.Clone(d.participants),
	}
	for k, v := range d.destinations {
		c.destinations[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.userByName {
		c.userByName[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.challenges {
		c.challenges[k] = v
	}
	for k, v := range d.invites {
		c.invites[k] = v
	}
	return c
}

// Memory is the map-backed Store.
type Memory struct {
	mu   *sync.RWMutex
	data *memData
	inTx bool // set on transactional views; the lock is already held
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{mu: &sync.RWMutex{}, data: newMemData()}
}

func (m *Memory) read(fn func(d *memData)) {
	if !m.inTx {
		m.mu.RLock()
		defer m.mu.RUnlock()
	}
	fn(m.data)
}

func (m *Memory) write(fn func(d *memData) error) error {
	if !m.inTx {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(m.data)
}

// InTx implements Store.
func (m *Memory) InTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	view := &Memory{mu: m.mu, data: m.data.clone(), inTx: true}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = view.data
	return nil
}

func (m *Memory) Destinations() DestinationRepo { return memDestinations{m} }
func (m *Memory) Users() UserRepo               { return memUsers{m} }
func (m *Memory) Sessions() SessionRepo         { return memSessions{m} }
func (m *Memory) Challenges() ChallengeRepo     { return memChallenges{m} }

func copyDestination(d model.Destination) model.Destination {
	d.Clues = slices.Clone(d.Clues)
	d.FunFacts = slices.Clone(d.FunFacts)
	d.Trivia = slices.Clone(d.Trivia)
	return d
}

// ------------------------------ destinations -------------------------------

type memDestinations struct{ m *Memory }

func (r memDestinations) Create(_ context.Context, d *model.Destination) error {
	return r.m.write(func(data *memData) error {
		if _, ok := data.destinations[d.ID]; ok {
			return ErrDuplicate
		}
		data.destinations[d.ID] = copyDestination(*d)
		data.destOrder = append(data.destOrder, d.ID)
		return nil
	})
}

func (r memDestinations) Get(_ context.Context, id string) (*model.Destination, error) {
	var out *model.Destination
	r.m.read(func(data *memData) {
		if d, ok := data.destinations[id]; ok {
			c := copyDestination(d)
			out = &c
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r memDestinations) Update(_ context.Context, d *model.Destination) error {
	return r.m.write(func(data *memData) error {
		if _, ok := data.destinations[d.ID]; !ok {
			return ErrNotFound
		}
		data.destinations[d.ID] = copyDestination(*d)
		return nil
	})
}

func (r memDestinations) Count(_ context.Context) (int, error) {
	var n int
	r.m.read(func(data *memData) { n = len(data.destOrder) })
	return n, nil
}

func (r memDestinations) Sample(_ context.Context, intn func(n int) int) (*model.Destination, error) {
	var out *model.Destination
	var err error
	r.m.read(func(data *memData) {
		n := len(data.destOrder)
		if n == 0 {
			err = ErrNotFound
			return
		}
		i := intn(n)
		if i < 0 || i >= n {
			err = ErrNotFound
			return
		}
		c := copyDestination(data.destinations[data.destOrder[i]])
		out = &c
	})
	return out, err
}

func (r memDestinations) Others(_ context.Context, excludeID string, limit int) ([]model.Destination, error) {
	var out []model.Destination
	r.m.read(func(data *memData) {
		ids := make([]string, 0, len(data.destOrder))
		for _, id := range data.destOrder {
			if id != excludeID {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		if limit >= 0 && len(ids) > limit {
			ids = ids[:limit]
		}
		out = make([]model.Destination, 0, len(ids))
		for _, id := range ids {
			out = append(out, copyDestination(data.destinations[id]))
		}
	})
	return out, nil
}

// --------------------------------- users -----------------------------------

type memUsers struct{ m *Memory }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	return r.m.write(func(data *memData) error {
		if _, ok := data.users[u.ID]; ok {
			return ErrDuplicate
		}
		if _, ok := data.userByName[u.UserName]; ok {
			return ErrDuplicate
		}
		data.users[u.ID] = *u
		data.userByName[u.UserName] = u.ID
		return nil
	})
}

func (r memUsers) Get(_ context.Context, id string) (*model.User, error) {
	var out *model.User
	r.m.read(func(data *memData) {
		if u, ok := data.users[id]; ok {
			out = &u
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r memUsers) GetByName(_ context.Context, name string) (*model.User, error) {
	var out *model.User
	r.m.read(func(data *memData) {
		if id, ok := data.userByName[name]; ok {
			u := data.users[id]
			out = &u
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// -------------------------------- sessions ---------------------------------

type memSessions struct{ m *Memory }

// resolve returns a copy of s with its destination attached.
func (d *memData) resolve(s model.GameSession) *model.GameSession {
	if dest, ok := d.destinations[s.DestinationID]; ok {
		c := copyDestination(dest)
		s.Destination = &c
	}
	return &s
}

func (r memSessions) Create(_ context.Context, s *model.GameSession) error {
	return r.m.write(func(data *memData) error {
		if _, ok := data.sessions[s.ID]; ok {
			return ErrDuplicate
		}
		if _, ok := data.destinations[s.DestinationID]; !ok {
			return ErrNotFound
		}
		if s.UserID != nil {
			if _, ok := data.users[*s.UserID]; !ok {
				return ErrNotFound
			}
		}
		row := *s
		row.Destination = nil
		data.sessions[s.ID] = row
		data.sessionOrder = append(data.sessionOrder, s.ID)
		return nil
	})
}

func (r memSessions) Get(_ context.Context, id string) (*model.GameSession, error) {
	var out *model.GameSession
	r.m.read(func(data *memData) {
		if s, ok := data.sessions[id]; ok {
			out = data.resolve(s)
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r memSessions) Update(_ context.Context, id string, fn func(s *model.GameSession) error) (*model.GameSession, error) {
	var out *model.GameSession
	err := r.m.write(func(data *memData) error {
		s, ok := data.sessions[id]
		if !ok {
			return ErrNotFound
		}
		working := data.resolve(s)
		if err := fn(working); err != nil {
			return err
		}
		row := *working
		row.Destination = nil
		data.sessions[id] = row
		out = data.resolve(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r memSessions) BestCompletedScore(_ context.Context, userID string) (int, error) {
	best := 0
	r.m.read(func(data *memData) {
		for _, s := range data.sessions {
			if s.Status == model.StatusCompleted && s.OwnedBy(userID) && s.Score > best {
				best = s.Score
			}
		}
	})
	return best, nil
}

func (r memSessions) ListByUser(_ context.Context, userID string, limit int) ([]model.GameSession, error) {
	out := []model.GameSession{}
	r.m.read(func(data *memData) {
		for i := len(data.sessionOrder) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				return
			}
			s := data.sessions[data.sessionOrder[i]]
			if s.OwnedBy(userID) {
				out = append(out, *data.resolve(s))
			}
		}
	})
	return out, nil
}

func (r memSessions) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	byUser := map[string]*model.LeaderboardEntry{}
	r.m.read(func(data *memData) {
		for _, s := range data.sessions {
			if s.Status != model.StatusCompleted || s.UserID == nil {
				continue
			}
			e, ok := byUser[*s.UserID]
			if !ok {
				e = &model.LeaderboardEntry{UserID: *s.UserID, UserName: data.users[*s.UserID].UserName}
				byUser[*s.UserID] = e
			}
			e.Completed++
			if s.Score > e.BestScore {
				e.BestScore = s.Score
			}
		}
	})
	out := make([]model.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return out[i].Completed > out[j].Completed
		}
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return strings.Compare(out[i].UserName, out[j].UserName) < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ------------------------------- challenges --------------------------------

type memChallenges struct{ m *Memory }

func (r memChallenges) Create(_ context.Context, c *model.ChallengeSession, inv *model.ChallengeInvite) error {
	return r.m.write(func(data *memData) error {
		if _, ok := data.users[c.OwnerID]; !ok {
			return ErrNotFound
		}
		if _, ok := data.challenges[c.ID]; ok {
			return ErrDuplicate
		}
		if _, ok := data.invites[inv.Code]; ok {
			return ErrDuplicate
		}
		data.challenges[c.ID] = *c
		data.invites[inv.Code] = *inv
		return nil
	})
}

func (r memChallenges) InviteByCode(_ context.Context, code string) (*model.InviteDetails, error) {
	var out *model.InviteDetails
	r.m.read(func(data *memData) {
		inv, ok := data.invites[code]
		if !ok {
			return
		}
		c := data.challenges[inv.ChallengeSessionID]
		out = &model.InviteDetails{Invite: inv, Challenge: c, Owner: data.users[c.OwnerID]}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r memChallenges) AddParticipant(_ context.Context, p *model.ChallengeParticipant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.m.write(func(data *memData) error {
		if _, ok := data.challenges[p.ChallengeSessionID]; !ok {
			return ErrNotFound
		}
		if p.UserID != nil {
			if _, ok := data.users[*p.UserID]; !ok {
				return ErrNotFound
			}
		}
		data.participants = append(data.participants, *p)
		return nil
	})
}

func (r memChallenges) Participants(_ context.Context, challengeID string) ([]model.ChallengeParticipant, error) {
	out := []model.ChallengeParticipant{}
	r.m.read(func(data *memData) {
		for _, p := range data.participants {
			if p.ChallengeSessionID == challengeID {
				out = append(out, p)
			}
		}
	})
	return out, nil
}
