package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/funbet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, name string, open func() Store) {
	Convey("Given a "+name+" store", t, func() {
		ctx := context.Background()
		s := open()
		Reset(func() { _ = s.Close() })

		Convey("An empty store should report no match", func() {
			_, err := s.LoadMatch(ctx)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("The match document should round trip through save", func() {
			m := model.NewMatch()
			m.Status = model.StatusInProgress
			m.Participants["a"] = model.Participant{Name: "Alpha", Amount: 1, Odds: "1:10"}
			m.Participants["b"] = model.Participant{Name: "Beta", Amount: 10, Odds: "10:1"}
			m.Bettors["b"] = []model.Bettor{{DisplayName: "L", Rank: 2}}
			m.UpdatedAt = time.Now().UTC().Truncate(time.Second)
			So(s.SaveMatch(ctx, m), ShouldBeNil)

			m.Status = model.StatusPayout
			m.Winner = "a"
			So(s.SaveMatch(ctx, m), ShouldBeNil)

			got, err := s.LoadMatch(ctx)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusPayout)
			So(got.Winner, ShouldEqual, "a")
			So(got.Participants, ShouldResemble, m.Participants)
			So(got.Bettors["b"], ShouldResemble, m.Bettors["b"])
		})

		Convey("Accounts should be upserted and ranked", func() {
			now := time.Now().UTC().Truncate(time.Second)
			So(s.SaveAccount(ctx, model.Account{ID: "1", DisplayName: "zed", Balance: 5, Rank: 3, UpdatedAt: now}), ShouldBeNil)
			So(s.SaveAccount(ctx, model.Account{ID: "2", DisplayName: "amy", Balance: 7, Rank: 3, UpdatedAt: now}), ShouldBeNil)
			So(s.SaveAccount(ctx, model.Account{ID: "3", DisplayName: "bob", Balance: 1, Rank: 9, Permissions: []string{"admin"}, UpdatedAt: now}), ShouldBeNil)
			So(s.SaveAccount(ctx, model.Account{ID: "1", DisplayName: "zed", Balance: 4, Rank: 1, UpdatedAt: now}), ShouldBeNil)

			a, err := s.LoadAccount(ctx, "1")
			So(err, ShouldBeNil)
			So(a.Balance, ShouldEqual, 4)
			So(a.Rank, ShouldEqual, 1)

			admin, err := s.LoadAccount(ctx, "3")
			So(err, ShouldBeNil)
			So(admin.IsAdmin(), ShouldBeTrue)

			_, err = s.LoadAccount(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			n, err := s.CountAccounts(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)

			top, err := s.TopAccounts(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].ID, ShouldEqual, "3")
			So(top[1].ID, ShouldEqual, "2")

			_, err = s.TopAccounts(ctx, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Wagers should be journaled one per account", func() {
			now := time.Now().UTC().Truncate(time.Second)
			So(s.SaveWager(ctx, model.Wager{AccountID: "x", ParticipantKey: "a", Amount: 3, PlacedAt: now}), ShouldBeNil)
			So(s.SaveWager(ctx, model.Wager{AccountID: "y", ParticipantKey: "b", Amount: 2, PlacedAt: now}), ShouldBeNil)
			So(s.SaveWager(ctx, model.Wager{AccountID: "x", ParticipantKey: "b", Amount: 5, PlacedAt: now}), ShouldBeNil)

			ws, err := s.LoadWagers(ctx)
			So(err, ShouldBeNil)
			So(ws, ShouldHaveLength, 2)
			So(ws[0].AccountID, ShouldEqual, "x")
			So(ws[0].ParticipantKey, ShouldEqual, "b")
			So(ws[0].Amount, ShouldEqual, 5)

			So(s.DeleteWagers(ctx), ShouldBeNil)
			ws, err = s.LoadWagers(ctx)
			So(err, ShouldBeNil)
			So(ws, ShouldBeEmpty)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, "memory", func() Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	n := 0
	exerciseStore(t, "sqlite", func() Store {
		n++
		path := filepath.Join(dir, "funbet-"+string(rune('a'+n))+".db")
		s, err := NewSQLiteStore(context.Background(), path)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("FUNBET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FUNBET_TEST_POSTGRES_DSN not set")
	}
	exerciseStore(t, "postgres", func() Store {
		s, err := NewPostgresStore(context.Background(), dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		ss := s.(*sqlStore)
		for _, table := range []string{"match_document", "accounts", "wagers"} {
			if _, err := ss.db.Exec("DELETE FROM " + table); err != nil {
				t.Fatalf("truncate %s: %v", table, err)
			}
		}
		return s
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FUNBET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FUNBET_TEST_REDIS_ADDR not set")
	}
	exerciseStore(t, "redis", func() Store {
		s, err := NewRedisStore(context.Background(), addr, WithKeyPrefix("funbet-test:"))
		if err != nil {
			t.Fatalf("open redis: %v", err)
		}
		if err := s.client.Del(context.Background(), s.key("match"), s.key("accounts"), s.key("wagers")).Err(); err != nil {
			t.Fatalf("reset redis: %v", err)
		}
		return s
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store drivers", t, func() {
		ctx := context.Background()

		Convey("memory should need no target", func() {
			s, err := Open(ctx, DriverMemory, "")
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &MemoryStore{})
		})

		Convey("sqlite should open a file", func() {
			s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
			So(err, ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("unknown drivers should be rejected", func() {
			_, err := Open(ctx, "cassandra", "")
			So(errors.Is(err, ErrUnknownStore), ShouldBeTrue)
		})
	})
}

func TestRankIndex(t *testing.T) {
	Convey("Given a rank index", t, func() {
		r := newRankIndex()
		for i, name := range []string{"e", "d", "c", "b", "a"} {
			r.upsert(name, name, int64(i%2))
		}

		Convey("Top should order by rank then name", func() {
			So(r.top(10), ShouldResemble, []string{"b", "d", "a", "c", "e"})
			So(r.top(2), ShouldResemble, []string{"b", "d"})
			So(r.size(), ShouldEqual, 5)
		})

		Convey("Upserting should move the entry", func() {
			r.upsert("e", "e", 7)
			So(r.top(1), ShouldResemble, []string{"e"})
			So(r.size(), ShouldEqual, 5)
		})
	})
}
