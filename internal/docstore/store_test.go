package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewFromURL(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), opts...)
	if err != nil {
		t.Fatalf("NewFromURL: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestPutGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, Games, "g1", &doc{Name: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got doc
	if err := s.Get(ctx, Games, "g1", &got); err != nil || got.Name != "a" {
		t.Fatalf("Get: %v %+v", err, got)
	}
	if err := s.Delete(ctx, Games, "g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, Games, "g1", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if err := s.Delete(ctx, Games, "missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestCreateIsExclusive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, Daily, "March 1, 2025", &doc{Name: "first"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, Daily, "March 1, 2025", &doc{Name: "second"}); !errors.Is(err, ErrExists) {
		t.Fatalf("second Create: %v", err)
	}
	var got doc
	_ = s.Get(ctx, Daily, "March 1, 2025", &got)
	if got.Name != "first" {
		t.Fatalf("document overwritten: %+v", got)
	}
}

func TestUpdateAndConflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, Users, "u1", &doc{Count: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := Update(ctx, s, Users, "u1", func(cur *doc) (*doc, error) {
		cur.Count++
		return cur, nil
	})
	if err != nil || got.Count != 2 {
		t.Fatalf("Update: %v %+v", err, got)
	}

	_, err = Update(ctx, s, Users, "u1", func(cur *doc) (*doc, error) {
		// A concurrent writer sneaks in between read and commit.
		if perr := s.Client().Set(ctx, docKey(Users, "u1"), `{"count":99}`, 0).Err(); perr != nil {
			t.Fatalf("sneak write: %v", perr)
		}
		cur.Count = 3
		return cur, nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var after doc
	_ = s.Get(ctx, Users, "u1", &after)
	if after.Count != 99 {
		t.Fatalf("conflicting write must not commit: %+v", after)
	}

	boom := errors.New("boom")
	if _, err := Update(ctx, s, Users, "u1", func(cur *doc) (*doc, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("fn error not propagated: %v", err)
	}
	if _, err := Update(ctx, s, Users, "nobody", func(cur *doc) (*doc, error) { return cur, nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc: %v", err)
	}
}

func TestTxnMultiDocument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, Lobby, "a", &doc{Name: "waiting"})
	_ = s.Put(ctx, Lobby, "b", &doc{Name: "waiting"})
	err := s.Txn(ctx, func(tx *Tx) error {
		var a, b doc
		if err := tx.Get(Lobby, "a", &a); err != nil {
			return err
		}
		if err := tx.Get(Lobby, "b", &b); err != nil {
			return err
		}
		if err := tx.Set(Games, "g1", &doc{Name: "game"}); err != nil {
			return err
		}
		a.Name, b.Name = "matched", "matched"
		if err := tx.Set(Lobby, "a", &a); err != nil {
			return err
		}
		tx.SetRank("elo", "a", 1010)
		return tx.Set(Lobby, "b", &b)
	}, Ref{Lobby, "a"}, Ref{Lobby, "b"})
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
	var a doc
	_ = s.Get(ctx, Lobby, "a", &a)
	if a.Name != "matched" {
		t.Fatalf("ticket a = %+v", a)
	}
	games, err := List[doc](ctx, s, Games)
	if err != nil || len(games) != 1 {
		t.Fatalf("List games: %v %d", err, len(games))
	}
	top, err := s.TopRank(ctx, "elo", 5)
	if err != nil || len(top) != 1 || top[0].Member != "a" || top[0].Score != 1010 {
		t.Fatalf("TopRank: %v %+v", err, top)
	}
}

func TestTxnReadsOwnWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	err := s.Txn(ctx, func(tx *Tx) error {
		if ok, _ := tx.Exists(Users, "u9"); ok {
			t.Fatalf("u9 should not exist yet")
		}
		_ = tx.Set(Users, "u9", &doc{Count: 5})
		var d doc
		if err := tx.Get(Users, "u9", &d); err != nil || d.Count != 5 {
			t.Fatalf("own write not visible: %v %+v", err, d)
		}
		return nil
	}, Ref{Users, "u9"})
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}
}

func TestListPrunesExpired(t *testing.T) {
	s, mr := newTestStore(t, WithTTL(Games, time.Minute))
	ctx := context.Background()
	_ = s.Put(ctx, Games, "old", &doc{Name: "old"})
	mr.FastForward(2 * time.Minute)
	_ = s.Put(ctx, Games, "new", &doc{Name: "new"})
	ids, err := s.IDs(ctx, Games)
	if err != nil || len(ids) != 1 || ids[0] != "new" {
		t.Fatalf("IDs = %v %v", ids, err)
	}
	if n, _ := s.Client().SCard(ctx, indexKey(Games)).Result(); n != 1 {
		t.Fatalf("stale id not pruned: %d", n)
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sub, err := s.Subscribe(ctx, Games, "g1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	all, err := s.Subscribe(ctx, Games, "")
	if err != nil {
		t.Fatalf("Subscribe collection: %v", err)
	}
	defer all.Close()

	if err := s.Put(ctx, Games, "g1", &doc{Name: "snap", Count: 7}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, ch := range []<-chan Change{sub.Changes(), all.Changes()} {
		select {
		case c := <-ch:
			if c.ID != "g1" || c.Collection != Games || c.Deleted || len(c.Data) == 0 {
				t.Fatalf("unexpected change: %+v", c)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no change delivered")
		}
	}
	_ = s.Delete(ctx, Games, "g1")
	select {
	case c := <-sub.Changes():
		if !c.Deleted {
			t.Fatalf("expected delete change: %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no delete delivered")
	}
}
