package challenge

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/game"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
	"github.com/robalobadob/globetrotter/internal/users"
)

type memCache struct {
	mu   sync.Mutex
	m    map[string]model.InviteDetails
	hits int
}

func (c *memCache) Get(_ context.Context, code string) (*model.InviteDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.m[code]
	if !ok {
		return nil, errors.New("miss")
	}
	c.hits++
	return &d, nil
}

func (c *memCache) Set(_ context.Context, d *model.InviteDetails, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl > 0 {
		c.m[d.Invite.Code] = *d
	}
	return nil
}

type fixture struct {
	st    *store.Memory
	eng   *Engine
	users *users.Service
	games *game.Engine
	cache *memCache
	now   time.Time
	owner *model.User
}

func newFixture(t *testing.T, withDestinations bool) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		st:    store.NewMemory(),
		cache: &memCache{m: map[string]model.InviteDetails{}},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.users = users.NewService(f.st, auth.NewIssuer("secret", time.Hour))
	f.games = game.NewEngine(f.st, game.Config{Rand: rand.New(rand.NewPCG(7, 8)), Now: clock})
	f.eng = NewEngine(f.st, f.games, f.users, Config{
		LinkBase: "https://play.example/join/",
		Cache:    f.cache,
		Now:      clock,
	})

	if withDestinations {
		for _, c := range []string{"Paris", "Tokyo", "Cairo", "Lima"} {
			d := &model.Destination{ID: c, City: c, Country: "X", CreatedAt: f.now}
			if err := f.st.Destinations().Create(ctx, d); err != nil {
				t.Fatal(err)
			}
		}
	}
	reg, err := f.users.Register(ctx, "owner")
	if err != nil {
		t.Fatal(err)
	}
	f.owner = reg.User
	return f
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	c, err := f.eng.Create(ctx, f.owner.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(c.InviteCode) != DefaultCodeLength {
		t.Errorf("code %q has length %d", c.InviteCode, len(c.InviteCode))
	}
	if c.InviteLink != "https://play.example/join/"+c.InviteCode {
		t.Errorf("InviteLink = %q", c.InviteLink)
	}
	if c.Owner.UserName != "owner" || c.OwnerScore != 0 {
		t.Errorf("owner = %+v score %d", c.Owner, c.OwnerScore)
	}
	if !c.ExpiresAt.Equal(f.now.Add(DefaultInviteTTL)) {
		t.Errorf("ExpiresAt = %v", c.ExpiresAt)
	}

	if _, err := f.eng.Create(ctx, "nobody"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("unknown owner: err = %v", err)
	}
}

func TestOwnerScoreIsFrozen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	before, err := f.eng.Create(ctx, f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	// The owner wins a game after the challenge was issued.
	s, err := f.games.CreateSession(ctx, &f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	caller := &auth.Identity{UserID: f.owner.ID, UserName: f.owner.UserName}
	if _, err := f.games.SubmitAnswer(ctx, s.ID, s.DestinationID, caller); err != nil {
		t.Fatal(err)
	}

	sum, err := f.eng.Get(ctx, before.InviteCode)
	if err != nil {
		t.Fatal(err)
	}
	if sum.OwnerScore != 0 {
		t.Errorf("existing invite score = %d, want 0", sum.OwnerScore)
	}

	after, err := f.eng.Create(ctx, f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.OwnerScore != 1 {
		t.Errorf("new invite score = %d, want 1", after.OwnerScore)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	c, _ := f.eng.Create(ctx, f.owner.ID)

	sum, err := f.eng.Get(ctx, c.InviteCode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sum.OwnerName != "owner" || sum.InviteCode != c.InviteCode {
		t.Errorf("summary = %+v", sum)
	}
	if f.cache.hits == 0 {
		t.Error("lookup did not use the cache")
	}

	if _, err := f.eng.Get(ctx, "missing"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing: err = %v", err)
	}
	if _, err := f.eng.Get(ctx, "  "); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("blank: err = %v", err)
	}

	f.now = c.ExpiresAt
	if _, err := f.eng.Get(ctx, c.InviteCode); !apperr.Is(err, apperr.Expired) {
		t.Errorf("expired: err = %v", err)
	}
}

func TestGetWithoutCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	eng := NewEngine(f.st, f.games, f.users, Config{Now: func() time.Time { return f.now }})

	c, err := eng.Create(ctx, f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.InviteLink != c.InviteCode {
		t.Errorf("InviteLink = %q, want bare code", c.InviteLink)
	}
	if _, err := eng.Get(ctx, c.InviteCode); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestJoinAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	c, _ := f.eng.Create(ctx, f.owner.ID)

	j, err := f.eng.Join(ctx, c.InviteCode, nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if j.TemporaryID == "" {
		t.Error("anonymous join has no temporary id")
	}
	if j.GameSession == nil || j.GameSession.UserID != nil || j.GameSession.Status != model.StatusInProgress {
		t.Errorf("session = %+v", j.GameSession)
	}
	if j.ID != c.ID || j.Owner.ID != f.owner.ID {
		t.Errorf("join view = %+v", j)
	}

	ps, err := f.st.Challenges().Participants(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].TemporaryID == nil || *ps[0].TemporaryID != j.TemporaryID {
		t.Errorf("participants = %+v", ps)
	}
}

func TestJoinNamedReusesUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	c, _ := f.eng.Create(ctx, f.owner.ID)
	name := "friend"

	first, err := f.eng.Join(ctx, c.InviteCode, &name)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	second, err := f.eng.Join(ctx, c.InviteCode, &name)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if first.TemporaryID != "" {
		t.Error("named join got a temporary id")
	}
	if first.GameSession.UserID == nil || second.GameSession.UserID == nil ||
		*first.GameSession.UserID != *second.GameSession.UserID {
		t.Errorf("sessions belong to different users")
	}
	if first.GameSession.ID == second.GameSession.ID {
		t.Error("joins share a game session")
	}

	u, err := f.st.Users().GetByName(ctx, "friend")
	if err != nil || u.ID != *first.GameSession.UserID {
		t.Errorf("user = %+v, %v", u, err)
	}
	ps, _ := f.st.Challenges().Participants(ctx, c.ID)
	if len(ps) != 2 {
		t.Errorf("participants = %d, want 2", len(ps))
	}
}

func TestJoinBlankNameIsAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	c, _ := f.eng.Create(ctx, f.owner.ID)
	blank := "   "

	j, err := f.eng.Join(ctx, c.InviteCode, &blank)
	if err != nil {
		t.Fatal(err)
	}
	if j.TemporaryID == "" {
		t.Error("blank name did not join anonymously")
	}
}

func TestJoinIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	c, err := f.eng.Create(ctx, f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	name := "friend"

	_, err = f.eng.Join(ctx, c.InviteCode, &name)
	if !apperr.Is(err, apperr.NoContent) {
		t.Fatalf("empty catalog: err = %v", err)
	}
	ps, _ := f.st.Challenges().Participants(ctx, c.ID)
	if len(ps) != 0 {
		t.Errorf("participants = %d after failed join", len(ps))
	}
	if _, err := f.st.Users().GetByName(ctx, "friend"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("user survived a failed join: %v", err)
	}
}

func TestJoinExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	c, _ := f.eng.Create(ctx, f.owner.ID)

	f.now = f.now.Add(DefaultInviteTTL + time.Minute)
	if _, err := f.eng.Join(ctx, c.InviteCode, nil); !apperr.Is(err, apperr.Expired) {
		t.Errorf("err = %v", err)
	}
}

func TestCodeCollisionRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	codes := []string{"AAAA", "AAAA", "BBBB"}
	eng := NewEngine(f.st, f.games, f.users, Config{
		Now: func() time.Time { return f.now },
		NewCode: func(int) string {
			c := codes[0]
			codes = codes[1:]
			return c
		},
	})

	a, err := eng.Create(ctx, f.owner.ID)
	if err != nil || a.InviteCode != "AAAA" {
		t.Fatalf("first = %+v, %v", a, err)
	}
	b, err := eng.Create(ctx, f.owner.ID)
	if err != nil || b.InviteCode != "BBBB" {
		t.Fatalf("second = %+v, %v", b, err)
	}

	stuck := NewEngine(f.st, f.games, f.users, Config{
		Now:     func() time.Time { return f.now },
		NewCode: func(int) string { return "AAAA" },
	})
	if _, err := stuck.Create(ctx, f.owner.ID); !apperr.Is(err, apperr.Internal) {
		t.Errorf("exhausted codes: err = %v", err)
	}
}
