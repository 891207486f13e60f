package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/globetrotter/internal/database"
	"github.com/robalobadob/globetrotter/internal/migrations"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
)

// eachStore runs fn against a fresh in-memory store and a fresh SQLite store.
func eachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemory()) })
	t.Run("sqlite", func(t *testing.T) {
		db, err := database.Open(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := migrations.Run(db.DB); err != nil {
			t.Fatalf("running migrations: %v", err)
		}
		fn(t, store.NewSQLite(db))
	})
}

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func seedDestinations(t *testing.T, st store.Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		d := &model.Destination{
			ID:        id,
			City:      "City" + id,
			Country:   "Country" + id,
			Clues:     model.StringList{"clue " + id},
			FunFacts:  model.StringList{},
			Trivia:    model.StringList{},
			CreatedAt: epoch.Add(time.Duration(i) * time.Second),
		}
		if err := st.Destinations().Create(context.Background(), d); err != nil {
			t.Fatalf("create destination %s: %v", id, err)
		}
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		img := "https://img.example/paris.jpg"
		in := &model.Destination{
			ID: "d1", City: "Paris", Country: "France",
			Clues:     model.StringList{"Eiffel", "Louvre"},
			FunFacts:  model.StringList{"fact"},
			Trivia:    model.StringList{"trivia"},
			ImageURL:  &img,
			CreatedAt: epoch,
		}
		if err := st.Destinations().Create(ctx, in); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := st.Destinations().Get(ctx, "d1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Name() != "Paris, France" || len(got.Clues) != 2 || got.ImageURL == nil || *got.ImageURL != img {
			t.Errorf("Get = %+v", got)
		}
		if !got.CreatedAt.Equal(epoch) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, epoch)
		}

		got.City = "Lyon"
		if err := st.Destinations().Update(ctx, got); err != nil {
			t.Fatalf("Update: %v", err)
		}
		again, _ := st.Destinations().Get(ctx, "d1")
		if again.City != "Lyon" {
			t.Errorf("City = %q after update", again.City)
		}

		if _, err := st.Destinations().Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get missing: err = %v, want ErrNotFound", err)
		}
		if err := st.Destinations().Update(ctx, &model.Destination{ID: "missing", City: "a", Country: "b"}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Update missing: err = %v, want ErrNotFound", err)
		}
	})
}

func TestSampleCoversCatalog(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		if _, err := st.Destinations().Sample(ctx, func(int) int { return 0 }); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("empty catalog: err = %v, want ErrNotFound", err)
		}

		seedDestinations(t, st, "a", "b", "c", "d")
		seen := map[string]bool{}
		for i := 0; i < 4; i++ {
			var gotN int
			d, err := st.Destinations().Sample(ctx, func(n int) int { gotN = n; return i })
			if err != nil {
				t.Fatalf("Sample(%d): %v", i, err)
			}
			if gotN != 4 {
				t.Errorf("intn called with %d, want 4", gotN)
			}
			seen[d.ID] = true
		}
		if len(seen) != 4 {
			t.Errorf("sampled %d distinct destinations, want 4", len(seen))
		}
	})
}

func TestOthersOrderedByID(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		seedDestinations(t, st, "e", "b", "a", "d", "c")
		got, err := st.Destinations().Others(context.Background(), "b", 3)
		if err != nil {
			t.Fatalf("Others: %v", err)
		}
		want := []string{"a", "c", "d"}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i, d := range got {
			if d.ID != want[i] {
				t.Errorf("got[%d] = %s, want %s", i, d.ID, want[i])
			}
		}
	})
}

func TestUserNamesUnique(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		if err := st.Users().Create(ctx, &model.User{ID: "u1", UserName: "alice", CreatedAt: epoch}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		err := st.Users().Create(ctx, &model.User{ID: "u2", UserName: "alice", CreatedAt: epoch})
		if !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("duplicate name: err = %v, want ErrDuplicate", err)
		}
		u, err := st.Users().GetByName(ctx, "alice")
		if err != nil || u.ID != "u1" {
			t.Fatalf("GetByName = %+v, %v", u, err)
		}
	})
}

func newSession(id, destID string, owner *string) *model.GameSession {
	return &model.GameSession{
		ID: id, UserID: owner, DestinationID: destID,
		MaxWrongAnswers: 3, Status: model.StatusInProgress, StartTime: epoch,
	}
}

func TestSessionUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedDestinations(t, st, "d1")
		if err := st.Sessions().Create(ctx, newSession("s1", "d1", nil)); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := st.Sessions().Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Destination == nil || got.Destination.ID != "d1" {
			t.Fatalf("destination not resolved: %+v", got.Destination)
		}

		end := epoch.Add(time.Minute)
		updated, err := st.Sessions().Update(ctx, "s1", func(s *model.GameSession) error {
			s.Score = 1
			s.Status = model.StatusCompleted
			s.EndTime = &end
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Status != model.StatusCompleted || updated.EndTime == nil {
			t.Errorf("Update result = %+v", updated)
		}

		boom := errors.New("boom")
		_, err = st.Sessions().Update(ctx, "s1", func(s *model.GameSession) error {
			s.Score = 99
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update err = %v, want boom", err)
		}
		again, _ := st.Sessions().Get(ctx, "s1")
		if again.Score != 1 {
			t.Errorf("Score = %d after failed update, want 1", again.Score)
		}

		if _, err := st.Sessions().Update(ctx, "nope", func(*model.GameSession) error { return nil }); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Update missing: err = %v", err)
		}
	})
}

func TestSessionUpdateSerializes(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedDestinations(t, st, "d1")
		if err := st.Sessions().Create(ctx, newSession("s1", "d1", nil)); err != nil {
			t.Fatalf("Create: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = st.Sessions().Update(ctx, "s1", func(s *model.GameSession) error {
					s.WrongAnswers++
					return nil
				})
			}()
		}
		wg.Wait()

		got, _ := st.Sessions().Get(ctx, "s1")
		if got.WrongAnswers != 20 {
			t.Errorf("WrongAnswers = %d, want 20 (lost updates)", got.WrongAnswers)
		}
	})
}

func TestBestScoreAndLeaderboard(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedDestinations(t, st, "d1")
		for _, u := range []model.User{{ID: "u1", UserName: "alice"}, {ID: "u2", UserName: "bob"}} {
			u.CreatedAt = epoch
			if err := st.Users().Create(ctx, &u); err != nil {
				t.Fatalf("create user: %v", err)
			}
		}

		if best, _ := st.Sessions().BestCompletedScore(ctx, "u1"); best != 0 {
			t.Errorf("best with no sessions = %d, want 0", best)
		}

		u1, u2 := "u1", "u2"
		rows := []struct {
			id     string
			owner  *string
			status model.Status
			score  int
		}{
			{"s1", &u1, model.StatusCompleted, 1},
			{"s2", &u1, model.StatusCompleted, 1},
			{"s3", &u1, model.StatusInProgress, 0},
			{"s4", &u2, model.StatusCompleted, 1},
			{"s5", &u2, model.StatusFailed, 0},
		}
		for i, r := range rows {
			s := newSession(r.id, "d1", r.owner)
			s.Status, s.Score = r.status, r.score
			s.StartTime = epoch.Add(time.Duration(i) * time.Second)
			if err := st.Sessions().Create(ctx, s); err != nil {
				t.Fatalf("create %s: %v", r.id, err)
			}
		}

		if best, _ := st.Sessions().BestCompletedScore(ctx, "u1"); best != 1 {
			t.Errorf("best = %d, want 1", best)
		}

		lb, err := st.Sessions().Leaderboard(ctx, 10)
		if err != nil {
			t.Fatalf("Leaderboard: %v", err)
		}
		if len(lb) != 2 || lb[0].UserName != "alice" || lb[0].Completed != 2 || lb[1].UserName != "bob" {
			t.Errorf("Leaderboard = %+v", lb)
		}

		mine, err := st.Sessions().ListByUser(ctx, "u1", 2)
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(mine) != 2 || mine[0].ID != "s3" {
			t.Errorf("ListByUser = %+v", mine)
		}
	})
}

func TestChallengeInvites(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		if err := st.Users().Create(ctx, &model.User{ID: "u1", UserName: "alice", CreatedAt: epoch}); err != nil {
			t.Fatalf("create user: %v", err)
		}
		mk := func(n int, code string) error {
			c := &model.ChallengeSession{
				ID: fmt.Sprintf("c%d", n), OwnerID: "u1", Status: model.StatusInProgress,
				EndTime: epoch.Add(time.Hour), CreatedAt: epoch,
			}
			inv := &model.ChallengeInvite{
				ID: fmt.Sprintf("i%d", n), ChallengeSessionID: c.ID, Code: code,
				ExpiresAt: epoch.Add(time.Hour), OwnerScore: 1, CreatedAt: epoch,
			}
			return st.InTx(ctx, func(tx store.Store) error { return tx.Challenges().Create(ctx, c, inv) })
		}
		if err := mk(1, "CODE1"); err != nil {
			t.Fatalf("create challenge: %v", err)
		}
		if err := mk(2, "CODE1"); !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("duplicate code: err = %v, want ErrDuplicate", err)
		}
		d, err := st.Challenges().InviteByCode(ctx, "CODE1")
		if err != nil {
			t.Fatalf("InviteByCode: %v", err)
		}
		if d.Owner.UserName != "alice" || d.Challenge.ID != "c1" || d.Invite.OwnerScore != 1 {
			t.Errorf("InviteByCode = %+v", d)
		}
		if _, err := st.Challenges().InviteByCode(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing code: err = %v", err)
		}

		tmp := "tmp-1"
		if err := st.Challenges().AddParticipant(ctx, &model.ChallengeParticipant{
			ID: "p1", ChallengeSessionID: "c1", TemporaryID: &tmp, JoinedAt: epoch,
		}); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
		bad := &model.ChallengeParticipant{ID: "p2", ChallengeSessionID: "c1", JoinedAt: epoch}
		if err := st.Challenges().AddParticipant(ctx, bad); !errors.Is(err, model.ErrParticipantIdentity) {
			t.Errorf("no identity: err = %v", err)
		}
		ps, _ := st.Challenges().Participants(ctx, "c1")
		if len(ps) != 1 || ps[0].TemporaryID == nil || *ps[0].TemporaryID != tmp {
			t.Errorf("Participants = %+v", ps)
		}
	})
}

func TestInTxRollback(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		boom := errors.New("boom")
		err := st.InTx(ctx, func(tx store.Store) error {
			if err := tx.Users().Create(ctx, &model.User{ID: "u1", UserName: "alice", CreatedAt: epoch}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTx err = %v, want boom", err)
		}
		if _, err := st.Users().Get(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("user visible after rollback: err = %v", err)
		}

		err = st.InTx(ctx, func(tx store.Store) error {
			return tx.Users().Create(ctx, &model.User{ID: "u2", UserName: "bob", CreatedAt: epoch})
		})
		if err != nil {
			t.Fatalf("InTx commit: %v", err)
		}
		if _, err := st.Users().Get(ctx, "u2"); err != nil {
			t.Errorf("user missing after commit: %v", err)
		}
	})
}
