package httpapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/park285/ballknower/pkg/gamedto"
)

// requestMatch blocks until the search ends. Closing the request cancels the
// search and withdraws the ticket.
func (s *Server) requestMatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	who, err := requireIdentity(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.lobby.RequestMatch(r.Context(), who)
	if err != nil {
		s.fail(w, err)
		return
	}
	outcome := string(res.Outcome)
	writeJSON(w, http.StatusOK, gamedto.LobbyResponse{
		Outcome:    outcome,
		GameID:     res.GameID,
		OpponentID: res.OpponentID,
		Message:    s.msgs.Text("lobby."+outcome, nil, outcome),
	})
}

func (s *Server) cancelMatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	who, err := requireIdentity(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.lobby.Cancel(r.Context(), who.ID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lobbyWaiting(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n, err := s.lobby.Waiting(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"waiting": n})
}
