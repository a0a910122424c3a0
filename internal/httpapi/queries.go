package httpapi

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/park285/ballknower/internal/attrindex"
	"github.com/park285/ballknower/internal/game"
	"github.com/park285/ballknower/pkg/gamedto"
)

func (s *Server) getPuzzle(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	pz, err := s.daily.Puzzle(r.Context(), p.ByName("date"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pz)
}

// playDaily replays a full attempt. Only a user's first solve of the current
// date becomes their recorded result.
func (s *Server) playDaily(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	who, err := requireIdentity(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	var req gamedto.DailyPlayRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	subs := make([]game.Submission, 0, len(req.Submissions))
	for _, m := range req.Submissions {
		sub, err := submissionOf(m)
		if err != nil {
			s.fail(w, err)
			return
		}
		subs = append(subs, sub)
	}
	res, err := s.daily.Play(r.Context(), p.ByName("date"), who, subs)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	prof, err := s.profiles.Get(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) recentGames(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	games, err := s.games.RecentGames(r.Context(), p.ByName("id"), limitParam(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rows, err := s.profiles.Leaderboard(r.Context(), limitParam(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) popularAnswers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rows, err := s.games.PopularAnswers(r.Context(), limitParam(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func query(r *http.Request) string { return strings.TrimSpace(r.URL.Query().Get("q")) }

func (s *Server) searchAthletes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	found := s.index.SearchAthletes(query(r), limitParam(r))
	out := make([]gamedto.AthleteHit, 0, len(found))
	for _, a := range found {
		out = append(out, athleteHit(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func athleteHit(a *attrindex.Athlete) gamedto.AthleteHit {
	h := gamedto.AthleteHit{ID: a.ID, Name: a.Name, League: a.League}
	start, end := string(a.StartYear), string(a.EndYear)
	switch {
	case start != "" && end != "":
		h.Years = start + "-" + end
	case start != "":
		h.Years = start + "-"
	}
	return h
}

func (s *Server) searchTeams(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	found := s.index.SearchTeams(query(r), limitParam(r))
	out := make([]gamedto.TeamHit, 0, len(found))
	for _, t := range found {
		out = append(out, gamedto.TeamHit{ID: t.ID, Name: t.Name, League: t.League})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchColleges(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	found := s.index.SearchColleges(query(r), limitParam(r))
	if found == nil {
		found = []string{}
	}
	writeJSON(w, http.StatusOK, found)
}
