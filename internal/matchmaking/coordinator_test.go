package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/profile"
)

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *docstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := docstore.NewFromURL(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("docstore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine := game.NewEngine(attrindex.New(nil, nil))
	return NewCoordinator(store, engine, cfg, WithProfiles(profile.NewService(store))), store
}

func seedRating(t *testing.T, store *docstore.Store, id string, elo int) {
	t.Helper()
	p := &profile.Profile{ID: id, DisplayName: id, Stats: profile.Stats{EloRating: []int{elo}}}
	if err := store.Put(context.Background(), docstore.Users, id, p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestConcurrentRequestsShareOneGame(t *testing.T) {
	c, store := newTestCoordinator(t, Config{Tick: 5 * time.Millisecond, MaxTicks: 400})
	seedRating(t, store, "u1", 1000)
	seedRating(t, store, "u2", 1050)
	ctx := context.Background()

	ids := []string{"u1", "u2"}
	results := make([]*Result, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = c.RequestMatch(ctx, profile.Identity{ID: id, Name: id, Persistent: true})
		}(i, id)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("RequestMatch(%s): %v", ids[i], errs[i])
		}
		if results[i].Outcome != OutcomeMatched {
			t.Fatalf("RequestMatch(%s) outcome = %s", ids[i], results[i].Outcome)
		}
	}
	if results[0].GameID == "" || results[0].GameID != results[1].GameID {
		t.Fatalf("game ids differ: %q vs %q", results[0].GameID, results[1].GameID)
	}

	games, err := docstore.List[game.Session](ctx, store, docstore.Games)
	if err != nil {
		t.Fatalf("List games: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected exactly one game, got %d", len(games))
	}
	g := games[0]
	if g.Status != game.StatusPlaying || g.Turn != game.SeatA || g.NextInputType != game.InputPlayer || len(g.History) != 0 || !g.Matchmade {
		t.Fatalf("unexpected session: %+v", g)
	}
	seated := map[string]bool{g.Players.A.ID: true, g.Players.B.ID: true}
	if !seated["u1"] || !seated["u2"] {
		t.Fatalf("players = %+v / %+v", g.Players.A, g.Players.B)
	}

	for _, id := range ids {
		var tk Ticket
		if err := store.Get(ctx, docstore.Lobby, id, &tk); err != nil {
			t.Fatalf("ticket %s: %v", id, err)
		}
		if tk.Status != TicketMatched || tk.GameID != g.GameID {
			t.Fatalf("ticket %s = %+v", id, tk)
		}
	}
}

func TestNearestPrefersClosestThenOldest(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cands := []*Ticket{
		{UID: "far", Elo: 1000, CreatedAt: base},
		{UID: "newer", Elo: 1400, CreatedAt: base.Add(2 * time.Second)},
		{UID: "older", Elo: 1300, CreatedAt: base.Add(time.Second)},
	}
	if got := nearest(1350, cands); got.UID != "older" {
		t.Fatalf("nearest = %s", got.UID)
	}
	if nearest(1000, nil) != nil {
		t.Fatalf("nearest of nothing should be nil")
	}
}

func TestFindCandidateSkipsStaleAndMatched(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c, store := newTestCoordinator(t, Config{})
	c.now = func() time.Time { return now }
	ctx := context.Background()
	put := func(tk *Ticket) {
		if err := store.Put(ctx, docstore.Lobby, tk.UID, tk); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	put(&Ticket{UID: "old", Elo: 1200, Status: TicketWaiting, CreatedAt: now.Add(-2 * time.Minute)})
	put(&Ticket{UID: "taken", Elo: 1200, Status: TicketMatched, CreatedAt: now})
	put(&Ticket{UID: "fresh", Elo: 900, Status: TicketWaiting, CreatedAt: now.Add(-10 * time.Second)})
	me := &Ticket{UID: "me", Elo: 1200, Status: TicketWaiting, CreatedAt: now}
	put(me)

	got, err := c.findCandidate(ctx, me)
	if err != nil {
		t.Fatalf("findCandidate: %v", err)
	}
	if got == nil || got.UID != "fresh" {
		t.Fatalf("candidate = %+v", got)
	}
	if n, err := c.Waiting(ctx); err != nil || n != 2 {
		t.Fatalf("Waiting = %d %v", n, err)
	}
}

func TestClaimRefusesTicketNoLongerWaiting(t *testing.T) {
	c, store := newTestCoordinator(t, Config{})
	ctx := context.Background()
	now := time.Now().UTC()
	_ = store.Put(ctx, docstore.Lobby, "a", &Ticket{UID: "a", Status: TicketWaiting, CreatedAt: now})
	_ = store.Put(ctx, docstore.Lobby, "b", &Ticket{UID: "b", Status: TicketMatched, GameID: "g0", CreatedAt: now})

	if _, err := c.claim(ctx, "a", "b"); !errors.Is(err, errStale) {
		t.Fatalf("claim: %v", err)
	}
	if _, err := c.claim(ctx, "a", "gone"); !errors.Is(err, errStale) {
		t.Fatalf("claim missing: %v", err)
	}
	ids, _ := store.IDs(ctx, docstore.Games)
	if len(ids) != 0 {
		t.Fatalf("aborted claim wrote games: %v", ids)
	}
	var a Ticket
	if err := store.Get(ctx, docstore.Lobby, "a", &a); err != nil || a.Status != TicketWaiting {
		t.Fatalf("ticket a changed: %v %+v", err, a)
	}
}

func TestSearchTimesOutAndDeletesTicket(t *testing.T) {
	c, store := newTestCoordinator(t, Config{Tick: time.Millisecond, MaxTicks: 3})
	ctx := context.Background()
	res, err := c.RequestMatch(ctx, profile.Identity{ID: "lonely", Name: "Lonely"})
	if err != nil {
		t.Fatalf("RequestMatch: %v", err)
	}
	if res.Outcome != OutcomeTimedOut || res.GameID != "" || res.Ticks != 3 {
		t.Fatalf("result = %+v", res)
	}
	var tk Ticket
	if err := store.Get(ctx, docstore.Lobby, "lonely", &tk); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("ticket left behind: %v %+v", err, tk)
	}
	ids, _ := store.IDs(ctx, docstore.Games)
	if len(ids) != 0 {
		t.Fatalf("timeout created a game: %v", ids)
	}
}

func TestCancelEndsSearch(t *testing.T) {
	c, store := newTestCoordinator(t, Config{Tick: 2 * time.Millisecond, MaxTicks: 5000})
	ctx := context.Background()
	done := make(chan *Result, 1)
	go func() {
		res, err := c.RequestMatch(ctx, profile.Identity{ID: "quitter"})
		if err != nil {
			t.Errorf("RequestMatch: %v", err)
		}
		done <- res
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		var tk Ticket
		if err := store.Get(ctx, docstore.Lobby, "quitter", &tk); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ticket never appeared")
		}
		time.Sleep(time.Millisecond)
	}
	if err := c.Cancel(ctx, "quitter"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	select {
	case res := <-done:
		if res == nil || res.Outcome != OutcomeCancelled {
			t.Fatalf("result = %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("search did not stop after cancel")
	}
	if err := c.Cancel(ctx, "quitter"); !errors.Is(err, ErrNoTicket) {
		t.Fatalf("second Cancel: %v", err)
	}
}

func TestCancelMatchedTicketIsRefused(t *testing.T) {
	c, store := newTestCoordinator(t, Config{})
	ctx := context.Background()
	_ = store.Put(ctx, docstore.Lobby, "m", &Ticket{UID: "m", Status: TicketMatched, GameID: "g1"})
	if err := c.Cancel(ctx, "m"); !errors.Is(err, ErrAlreadyMatched) {
		t.Fatalf("Cancel: %v", err)
	}
	var tk Ticket
	if err := store.Get(ctx, docstore.Lobby, "m", &tk); err != nil || tk.GameID != "g1" {
		t.Fatalf("matched ticket touched: %v %+v", err, tk)
	}
}

func TestRequestMatchNeedsIdentity(t *testing.T) {
	c, _ := newTestCoordinator(t, Config{})
	if _, err := c.RequestMatch(context.Background(), profile.Identity{}); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("RequestMatch: %v", err)
	}
}
