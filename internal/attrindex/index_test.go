package attrindex

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/valyala/fasthttp"
)

const playersJSON = `{
  "lebron-james": {"name": "LeBron James", "league": "NBA", "start_year": 2003, "end_year": "2025",
    "teams": ["CLE", "MIA", "LAL"], "numbers": [23, "6"], "colleges": ["None"]},
  "anthony-davis": {"id": "anthony-davis", "name": "Anthony Davis", "league": "NBA",
    "teams": ["NOP", "LAL", "DAL"], "numbers": [23, 3], "colleges": ["Kentucky"]},
  "ghost": {"name": "Ghost Player", "league": "NBA", "teams": [], "numbers": [], "colleges": ["-"]}
}`

const teamsJSON = `{"LAL": {"name": "Los Angeles Lakers"}, "MIA": {"name": "Miami Heat"}, "CLE": {"name": "Cleveland Cavaliers"}}`

func sampleIndex(t *testing.T) *Index {
	t.Helper()
	athletes, err := DecodeAthletes([]byte(playersJSON))
	if err != nil {
		t.Fatalf("DecodeAthletes: %v", err)
	}
	teams, err := DecodeTeams([]byte(teamsJSON))
	if err != nil {
		t.Fatalf("DecodeTeams: %v", err)
	}
	return New(athletes, teams)
}

func TestDecodeAthletes_KeyedAndFlexible(t *testing.T) {
	idx := sampleIndex(t)
	lbj, ok := idx.Athlete("lebron-james")
	if !ok {
		t.Fatalf("lebron-james missing")
	}
	if lbj.ID != "lebron-james" || string(lbj.StartYear) != "2003" || string(lbj.EndYear) != "2025" {
		t.Fatalf("unexpected athlete: %+v", lbj)
	}
	if len(lbj.Numbers) != 2 || lbj.Numbers[0] != "23" || lbj.Numbers[1] != "6" {
		t.Fatalf("numbers not normalised: %v", lbj.Numbers)
	}
	if n, nt := idx.Size(); n != 3 || nt != 3 {
		t.Fatalf("size = %d/%d", n, nt)
	}
}

func TestHasIsCaseInsensitive(t *testing.T) {
	idx := sampleIndex(t)
	lbj, _ := idx.Athlete("lebron-james")
	if !lbj.Has(KindTeam, " lal ") {
		t.Fatalf("expected LAL match ignoring case and space")
	}
	if lbj.Has(KindTeam, "NOP") {
		t.Fatalf("unexpected NOP match")
	}
	if lbj.Has(KindPlayer, "LAL") {
		t.Fatalf("player kind has no link array")
	}
	if k, ok := lbj.Match("23"); !ok || k != KindNumber {
		t.Fatalf("Match(23) = %q %v", k, ok)
	}
}

func TestLinkable(t *testing.T) {
	idx := sampleIndex(t)
	ghost, _ := idx.Athlete("ghost")
	if ghost.Linkable() {
		t.Fatalf("placeholder college must not count as linkable")
	}
	ad, _ := idx.Athlete("anthony-davis")
	if !ad.Linkable() {
		t.Fatalf("anthony-davis should be linkable")
	}
}

func TestCarriersAndColleges(t *testing.T) {
	idx := sampleIndex(t)
	if got := idx.Carriers(KindTeam, "lal"); len(got) != 2 {
		t.Fatalf("LAL carriers = %d", len(got))
	}
	if got := idx.Carriers(KindNumber, "23"); len(got) != 2 {
		t.Fatalf("23 carriers = %d", len(got))
	}
	if idx.AnyCarrier(KindCollege, "Duke") {
		t.Fatalf("nobody went to Duke")
	}
	cols := idx.Colleges()
	if len(cols) != 1 || cols[0] != "Kentucky" {
		t.Fatalf("colleges = %v", cols)
	}
}

func TestSearch(t *testing.T) {
	idx := sampleIndex(t)
	if got := idx.SearchAthletes("an", 0); len(got) != 1 || got[0].ID != "anthony-davis" {
		t.Fatalf("SearchAthletes(an) = %v", got)
	}
	if got := idx.SearchAthletes("a", 1); len(got) != 1 {
		t.Fatalf("limit ignored: %d", len(got))
	}
	if got := idx.SearchTeams("heat", 10); len(got) != 1 || got[0].ID != "MIA" {
		t.Fatalf("SearchTeams(heat) = %v", got)
	}
	if got := idx.SearchColleges("kent", 10); len(got) != 1 {
		t.Fatalf("SearchColleges = %v", got)
	}
	if got := idx.SearchAthletes("  ", 10); got != nil {
		t.Fatalf("blank query should return nil")
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"team": KindTeam, "Teams": KindTeam, "number": KindNumber, "colleges": KindCollege, "player": KindPlayer}
	for in, want := range cases {
		got, ok := ParseKind(in)
		if !ok || got != want {
			t.Fatalf("ParseKind(%q) = %q %v", in, got, ok)
		}
	}
	if _, ok := ParseKind("position"); ok {
		t.Fatalf("position is not a kind")
	}
	if KindPlayer.IsAttribute() || !KindCollege.IsAttribute() {
		t.Fatalf("IsAttribute mismatch")
	}
}

func TestCollegeAliases(t *testing.T) {
	aliases, err := DecodeCollegeAliases([]byte("kentucky:\n  - Kentucky\n  - University of Kentucky\n  - UK\n"))
	if err != nil {
		t.Fatalf("DecodeCollegeAliases: %v", err)
	}
	athletes := []*Athlete{{ID: "x", Name: "X", Colleges: []string{"UK", "University of Kentucky", "Duke"}}}
	ApplyCollegeAliases(athletes, aliases)
	got := athletes[0].Colleges
	if len(got) != 2 || got[0] != "Kentucky" || got[1] != "Duke" {
		t.Fatalf("colleges after aliasing = %v", got)
	}
}

func TestLoaderFilesAndURL(t *testing.T) {
	dir := t.TempDir()
	players := filepath.Join(dir, "players.json")
	if err := os.WriteFile(players, []byte(playersJSON), 0o644); err != nil {
		t.Fatalf("write players: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/teams.json":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(teamsJSON)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	l := NewLoader(WithRetry(1))
	idx, err := l.Load(context.Background(), Sources{Players: players, Teams: "http://" + ln.Addr().String() + "/teams.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := idx.Team("LAL"); !ok {
		t.Fatalf("teams not loaded from URL")
	}

	_, err = l.Load(context.Background(), Sources{Players: players, Teams: "http://" + ln.Addr().String() + "/missing.json"})
	if err == nil {
		t.Fatalf("expected error for 404 source")
	}
	if _, err := l.Load(context.Background(), Sources{Teams: "x"}); err == nil {
		t.Fatalf("expected error for missing players source")
	}
}
