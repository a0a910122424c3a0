package online

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/docstore"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/internal/profile"
)

func testIndex() *attrindex.Index {
	return attrindex.New([]*attrindex.Athlete{
		{ID: "lebron-james", Name: "LeBron James", League: "NBA", Teams: []string{"CLE", "MIA", "LAL"}, Numbers: attrindex.FlexList{"23", "6"}},
		{ID: "anthony-davis", Name: "Anthony Davis", League: "NBA", Teams: []string{"NOP", "LAL", "DAL"}, Numbers: attrindex.FlexList{"23", "3"}, Colleges: []string{"Kentucky"}},
		{ID: "dwyane-wade", Name: "Dwyane Wade", League: "NBA", Teams: []string{"MIA", "CHI", "CLE"}, Numbers: attrindex.FlexList{"3"}, Colleges: []string{"Marquette"}},
	}, nil)
}

type fixture struct {
	m        *Manager
	store    *docstore.Store
	profiles *profile.Service
	archive  Archive
	clock    time.Time
}

var (
	host  = profile.Identity{ID: "alice", Name: "Alice", Persistent: true}
	guest = profile.Identity{ID: "bob", Name: "Bob", Persistent: true}
)

func newFixture(t *testing.T) *fixture {
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

	f := &fixture{store: store, profiles: profile.NewService(store), archive: NewMemoryArchive()}
	f.clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	idx := testIndex()
	engine := game.NewEngine(idx, game.WithClock(func() time.Time { return f.clock }))
	seq := 0
	f.m = NewManager(store, engine,
		WithProfiles(f.profiles),
		WithArchive(f.archive),
		WithIndex(idx),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("g%d", seq) }),
	)
	return f
}

func (f *fixture) started(t *testing.T) *game.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.m.CreateFriendly(ctx, host)
	if err != nil {
		t.Fatalf("CreateFriendly: %v", err)
	}
	if s.Status != game.StatusWaiting || s.Players.B != nil {
		t.Fatalf("friendly game = %+v", s)
	}
	s, err = f.m.Join(ctx, s.GameID, guest)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return s
}

func TestFriendlyJoinStartsPlay(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	if s.Status != game.StatusPlaying || s.Turn != game.SeatA || s.Players.B.ID != "bob" {
		t.Fatalf("joined = %+v", s)
	}
	if !s.TurnDeadline.Equal(f.clock.Add(game.DefaultTurnDuration)) {
		t.Fatalf("deadline = %v", s.TurnDeadline)
	}
	// rejoining returns the same game without changing it
	again, err := f.m.Join(context.Background(), s.GameID, guest)
	if err != nil || again.Players.B.ID != "bob" {
		t.Fatalf("rejoin: %v %+v", err, again)
	}
	if _, err := f.m.Join(context.Background(), s.GameID, profile.Identity{ID: "carol"}); !errors.Is(err, game.ErrAlreadyStarted) {
		t.Fatalf("third join: %v", err)
	}
	if _, err := f.m.Join(context.Background(), "missing", guest); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("missing join: %v", err)
	}
}

func TestOnlyTurnHolderMayWrite(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	ctx := context.Background()
	if _, err := f.m.Submit(ctx, s.GameID, "bob", game.Submission{Value: "lebron-james"}); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("wrong seat: %v", err)
	}
	if _, err := f.m.Submit(ctx, s.GameID, "mallory", game.Submission{Value: "lebron-james"}); !errors.Is(err, game.ErrNotSeated) {
		t.Fatalf("stranger: %v", err)
	}
	stored, _ := f.m.Load(ctx, s.GameID)
	if len(stored.History) != 0 {
		t.Fatalf("rejected write changed the document: %+v", stored.History)
	}
}

func TestHardFailureSettlesAndArchives(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	ctx := context.Background()
	steps := []struct {
		user string
		sub  game.Submission
	}{
		{"alice", game.Submission{Value: "lebron-james"}},
		{"bob", game.Submission{Type: attrindex.KindTeam, Value: "LAL"}},
		{"alice", game.Submission{Value: "dwyane-wade"}},
	}
	var tr *game.Transition
	for _, st := range steps {
		var err error
		tr, err = f.m.Submit(ctx, s.GameID, st.user, st.sub)
		if err != nil {
			t.Fatalf("Submit(%s): %v", st.user, err)
		}
	}
	if !tr.Ended || tr.Failure == nil || tr.Session.Winner != game.SeatB {
		t.Fatalf("expected hard failure won by B: %+v", tr)
	}

	stored, err := f.m.Load(ctx, s.GameID)
	if err != nil || stored.Status != game.StatusFinished {
		t.Fatalf("stored = %v %+v", err, stored)
	}

	winner, _ := f.profiles.Get(ctx, "bob")
	loser, _ := f.profiles.Get(ctx, "alice")
	if winner == nil || loser == nil || winner.Stats.Wins != 1 || loser.Stats.Losses != 1 {
		t.Fatalf("profiles not settled: %+v / %+v", winner, loser)
	}
	if winner.Rating() != 1020 || loser.Rating() != 980 {
		t.Fatalf("ratings = %d / %d", winner.Rating(), loser.Rating())
	}

	games, err := f.m.RecentGames(ctx, "alice", 5)
	if err != nil || len(games) != 1 {
		t.Fatalf("RecentGames: %v %v", err, games)
	}
	if games[0].Won || games[0].OpponentID != "bob" || games[0].EndReason != string(game.EndIncorrect) || games[0].Moves != 2 {
		t.Fatalf("summary = %+v", games[0])
	}

	answers, err := f.m.PopularAnswers(ctx, 5)
	if err != nil || len(answers) != 1 || answers[0].AthleteID != "lebron-james" || answers[0].Name != "LeBron James" {
		t.Fatalf("answers = %v %+v", err, answers)
	}
}

func TestGiveUpTwiceIsRefused(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	ctx := context.Background()
	tr, err := f.m.GiveUp(ctx, s.GameID, "bob")
	if err != nil || tr.Session.Winner != game.SeatA {
		t.Fatalf("GiveUp: %v %+v", err, tr)
	}
	n := len(tr.Session.History)
	if _, err := f.m.GiveUp(ctx, s.GameID, "alice"); !errors.Is(err, game.ErrNotActive) {
		t.Fatalf("second GiveUp: %v", err)
	}
	if _, err := f.m.Timeout(ctx, s.GameID, "alice"); !errors.Is(err, game.ErrNotActive) {
		t.Fatalf("Timeout after finish: %v", err)
	}
	stored, _ := f.m.Load(ctx, s.GameID)
	if stored.Winner != game.SeatA || len(stored.History) != n {
		t.Fatalf("finished game changed: %+v", stored)
	}
	alice, _ := f.profiles.Get(ctx, "alice")
	if alice == nil || alice.Stats.GamesPlayed != 1 {
		t.Fatalf("settled twice: %+v", alice)
	}
}

func TestClientTimeoutAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.started(t)
	second := f.started(t)

	if _, err := f.m.Timeout(ctx, first.GameID, "alice"); !errors.Is(err, game.ErrDeadlineNotPassed) {
		t.Fatalf("early timeout: %v", err)
	}
	f.clock = f.clock.Add(game.DefaultTurnDuration + time.Second)
	if _, err := f.m.Timeout(ctx, first.GameID, "bob"); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("off-turn timeout: %v", err)
	}
	tr, err := f.m.Timeout(ctx, first.GameID, "alice")
	if err != nil || tr.Session.Winner != game.SeatB || tr.Session.EndReason != game.EndTimeout {
		t.Fatalf("Timeout: %v %+v", err, tr)
	}

	n, err := f.m.ExpireOverdue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireOverdue = %d %v", n, err)
	}
	swept, _ := f.m.Load(ctx, second.GameID)
	if swept.Status != game.StatusFinished || swept.Winner != game.SeatB {
		t.Fatalf("swept = %+v", swept)
	}
	if n, err := f.m.ExpireOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep = %d %v", n, err)
	}
}

func TestChallengeThroughManager(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	ctx := context.Background()
	if _, err := f.m.Submit(ctx, s.GameID, "alice", game.Submission{Value: "anthony-davis"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tr, err := f.m.Challenge(ctx, s.GameID, "bob")
	if err != nil || tr.Session.ChallengeStatus != game.ChallengePending || tr.Session.Turn != game.SeatA {
		t.Fatalf("Challenge: %v %+v", err, tr)
	}
	tr, err = f.m.Respond(ctx, s.GameID, "alice", game.Submission{Value: "Kentucky"})
	if err != nil || !tr.Ended || tr.Session.Winner != game.SeatA {
		t.Fatalf("Respond: %v %+v", err, tr)
	}
	alts, err := f.m.Alternatives(ctx, s.GameID, 0)
	if err != nil || alts.Want != game.InputAttribute || len(alts.Attributes) == 0 {
		t.Fatalf("Alternatives: %v %+v", err, alts)
	}
}

func TestSubscribeSeesCommittedMove(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	ctx := context.Background()
	sub, err := f.m.Subscribe(ctx, s.GameID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	if _, err := f.m.Submit(ctx, s.GameID, "alice", game.Submission{Value: "lebron-james"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case ch := <-sub.Changes():
		var snap game.Session
		if err := json.Unmarshal(ch.Data, &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.LastPlayerID != "lebron-james" || snap.Turn != game.SeatB {
			t.Fatalf("snapshot = %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no change delivered")
	}
}
